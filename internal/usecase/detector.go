package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/shopspring/decimal"
)

type VerdictKind string

const (
	VerdictInsufficientData VerdictKind = "insufficient_data"
	VerdictFabricated       VerdictKind = "fabricated"
	VerdictExaggerated      VerdictKind = "exaggerated"
	VerdictGenuine          VerdictKind = "genuine"
	VerdictPartiallyGenuine VerdictKind = "partially_genuine"
	VerdictNearFloor        VerdictKind = "near_floor"
	VerdictNearCeiling      VerdictKind = "near_ceiling"
	VerdictTypical          VerdictKind = "typical"
)

const (
	confidenceFake       = 85
	confidenceFakeMarkup = 95
	confidenceGenuine    = 80
	confidencePartial    = 60
	minSnapshotsToDecide = 2
)

type DetectorConfig struct {
	HistoryWindow          time.Duration
	MarkupLookback         time.Duration
	FakeRatio              decimal.Decimal
	FloorRatio             decimal.Decimal
	CeilingRatio           decimal.Decimal
	MarkupThresholdPercent decimal.Decimal
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		HistoryWindow:          180 * 24 * time.Hour,
		MarkupLookback:         60 * 24 * time.Hour,
		FakeRatio:              decimal.RequireFromString("0.95"),
		FloorRatio:             decimal.RequireFromString("1.05"),
		CeilingRatio:           decimal.RequireFromString("0.95"),
		MarkupThresholdPercent: decimal.NewFromInt(15),
	}
}

// Markup is a jump between two consecutive snapshots, typically a price
// raised shortly before a "sale".
type Markup struct {
	From    decimal.Decimal
	To      decimal.Decimal
	Percent decimal.Decimal
	At      time.Time
}

type Verdict struct {
	Kind                   VerdictKind
	IsFake                 bool
	Confidence             int
	Summary                string
	Rationale              []string
	ClaimedDiscountPercent decimal.Decimal
	RealDiscountPercent    decimal.Decimal
	HistoryMin             *decimal.Decimal
	HistoryAvg             *decimal.Decimal
	HistoryMax             *decimal.Decimal
	Markup                 *Markup
}

type FakeDiscountDetector struct {
	snapshots domain.SnapshotRepository
	cfg       DetectorConfig
	now       func() time.Time
}

func NewFakeDiscountDetector(snapshots domain.SnapshotRepository, cfg DetectorConfig) *FakeDiscountDetector {
	return &FakeDiscountDetector{snapshots: snapshots, cfg: cfg, now: time.Now}
}

// Evaluate judges a claimed discount against the product's own history.
// Missing history yields an insufficient_data verdict rather than an error.
func (d *FakeDiscountDetector) Evaluate(ctx context.Context, productID uint, currentPrice decimal.Decimal, claimedOriginal *decimal.Decimal) (Verdict, error) {
	now := d.now().UTC()
	history, err := d.snapshots.ListSince(ctx, productID, now.Add(-d.cfg.HistoryWindow))
	if err != nil {
		return Verdict{}, fmt.Errorf("load history for product %d: %w", productID, err)
	}
	return d.analyze(history, currentPrice, claimedOriginal, now), nil
}

func (d *FakeDiscountDetector) analyze(history []domain.PriceSnapshot, current decimal.Decimal, claimed *decimal.Decimal, now time.Time) Verdict {
	priced := make([]domain.PriceSnapshot, 0, len(history))
	for _, snapshot := range history {
		if snapshot.Price.IsPositive() {
			priced = append(priced, snapshot)
		}
	}
	if len(priced) < minSnapshotsToDecide {
		return Verdict{
			Kind:    VerdictInsufficientData,
			Summary: "Not enough price history yet. Tracking has started, check back in a few days.",
		}
	}

	minPrice, maxPrice, avgPrice := summarize(priced)
	verdict := Verdict{
		HistoryMin: &minPrice,
		HistoryAvg: &avgPrice,
		HistoryMax: &maxPrice,
	}

	if claimed == nil || !claimed.GreaterThan(current) || !current.IsPositive() {
		d.classifyByRange(&verdict, current, minPrice, maxPrice)
		return verdict
	}

	verdict.ClaimedDiscountPercent = percentBelow(*claimed, current)
	verdict.RealDiscountPercent = percentBelow(avgPrice, current)
	verdict.Rationale = []string{
		fmt.Sprintf("Claimed discount: %s%% from %s", verdict.ClaimedDiscountPercent.StringFixed(0), formatPrice(*claimed)),
		fmt.Sprintf("Average price over the period: %s", formatPrice(avgPrice)),
		fmt.Sprintf("Lowest price over the period: %s", formatPrice(minPrice)),
	}

	switch {
	case current.GreaterThanOrEqual(avgPrice.Mul(d.cfg.FakeRatio)):
		verdict.IsFake = true
		verdict.Confidence = confidenceFake
		if current.GreaterThanOrEqual(avgPrice) {
			verdict.Kind = VerdictFabricated
			verdict.Summary = fmt.Sprintf("Fake discount. The current price is not below the usual %s; the reference price %s was inflated.",
				formatPrice(avgPrice), formatPrice(*claimed))
		} else {
			verdict.Kind = VerdictExaggerated
			verdict.Summary = fmt.Sprintf("Discount exaggerated. Claimed %s%%, the real saving against the usual price is only %s%%.",
				verdict.ClaimedDiscountPercent.StringFixed(0), verdict.RealDiscountPercent.StringFixed(0))
		}
		if markup := d.detectMarkup(priced, now); markup != nil {
			verdict.Confidence = confidenceFakeMarkup
			verdict.Markup = markup
			verdict.Rationale = append(verdict.Rationale, fmt.Sprintf("Price was raised %s%% on %s (%s → %s) before the sale",
				markup.Percent.StringFixed(0), markup.At.Format("2006-01-02"), formatPrice(markup.From), formatPrice(markup.To)))
		}
	case minPrice.IsPositive() && current.LessThanOrEqual(minPrice.Mul(d.cfg.FloorRatio)):
		verdict.Kind = VerdictGenuine
		verdict.Confidence = confidenceGenuine
		verdict.Summary = fmt.Sprintf("Real discount. The price is at its historical low, %s%% below the usual price.",
			verdict.RealDiscountPercent.StringFixed(0))
	default:
		verdict.Kind = VerdictPartiallyGenuine
		verdict.Confidence = confidencePartial
		verdict.Summary = fmt.Sprintf("Partially real discount. The saving is %s%%, not the advertised %s%%; the lowest price seen was %s.",
			verdict.RealDiscountPercent.StringFixed(0), verdict.ClaimedDiscountPercent.StringFixed(0), formatPrice(minPrice))
	}
	return verdict
}

func (d *FakeDiscountDetector) classifyByRange(verdict *Verdict, current, minPrice, maxPrice decimal.Decimal) {
	switch {
	case current.LessThanOrEqual(minPrice.Mul(d.cfg.FloorRatio)):
		verdict.Kind = VerdictNearFloor
		verdict.Summary = fmt.Sprintf("Good price: close to the historical low of %s.", formatPrice(minPrice))
	case current.GreaterThanOrEqual(maxPrice.Mul(d.cfg.CeilingRatio)):
		verdict.Kind = VerdictNearCeiling
		verdict.Summary = fmt.Sprintf("Expensive: close to the historical high of %s. Consider waiting for a drop.", formatPrice(maxPrice))
	default:
		verdict.Kind = VerdictTypical
		verdict.Summary = fmt.Sprintf("Typical price, between %s and %s.", formatPrice(minPrice), formatPrice(maxPrice))
	}
}

// detectMarkup finds the largest rise between consecutive snapshots within
// the lookback window and reports it when it exceeds the threshold.
func (d *FakeDiscountDetector) detectMarkup(priced []domain.PriceSnapshot, now time.Time) *Markup {
	since := now.Add(-d.cfg.MarkupLookback)
	recent := make([]domain.PriceSnapshot, 0, len(priced))
	for _, snapshot := range priced {
		if !snapshot.RecordedAt.Before(since) {
			recent = append(recent, snapshot)
		}
	}
	if len(recent) < 2 {
		return nil
	}

	var best *Markup
	for i := 1; i < len(recent); i++ {
		prev, next := recent[i-1].Price, recent[i].Price
		if !prev.IsPositive() || !next.GreaterThan(prev) {
			continue
		}
		rise := next.Sub(prev).Div(prev).Mul(hundred)
		if best == nil || rise.GreaterThan(best.Percent) {
			best = &Markup{From: prev, To: next, Percent: rise, At: recent[i].RecordedAt}
		}
	}
	if best == nil || !best.Percent.GreaterThan(d.cfg.MarkupThresholdPercent) {
		return nil
	}
	return best
}

func summarize(priced []domain.PriceSnapshot) (minPrice, maxPrice, avgPrice decimal.Decimal) {
	minPrice, maxPrice = priced[0].Price, priced[0].Price
	sum := decimal.Zero
	for _, snapshot := range priced {
		sum = sum.Add(snapshot.Price)
		minPrice = decimal.Min(minPrice, snapshot.Price)
		maxPrice = decimal.Max(maxPrice, snapshot.Price)
	}
	avgPrice = sum.Div(decimal.NewFromInt(int64(len(priced))))
	return minPrice, maxPrice, avgPrice
}

// percentBelow is how far price sits below reference, in percent. A
// non-positive reference yields zero.
func percentBelow(reference, price decimal.Decimal) decimal.Decimal {
	if !reference.IsPositive() {
		return decimal.Zero
	}
	return reference.Sub(price).Div(reference).Mul(hundred)
}
