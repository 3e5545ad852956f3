package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

type LedgerConfig struct {
	TrendWindow           time.Duration
	TrendThresholdPercent decimal.Decimal
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		TrendWindow:           30 * 24 * time.Hour,
		TrendThresholdPercent: decimal.NewFromInt(3),
	}
}

// PriceStats summarizes the ledger over a window. A zero Count is the
// "no data yet" outcome, not a failure.
type PriceStats struct {
	Count        int
	Min          decimal.Decimal
	Max          decimal.Decimal
	Avg          decimal.Decimal
	Current      decimal.Decimal
	MinAt        time.Time
	MaxAt        time.Time
	Trend        Trend
	TrendPercent decimal.Decimal
	Snapshots    []domain.PriceSnapshot
}

func (s PriceStats) HasData() bool {
	return s.Count > 0
}

type PriceLedger struct {
	snapshots domain.SnapshotRepository
	cfg       LedgerConfig
	logger    *zap.Logger
	locks     *keyedMutex[uint]
	now       func() time.Time
}

func NewPriceLedger(snapshots domain.SnapshotRepository, cfg LedgerConfig, logger *zap.Logger) *PriceLedger {
	return &PriceLedger{
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger,
		locks:     newKeyedMutex[uint](),
		now:       time.Now,
	}
}

// Append records one observation. Non-positive prices are dropped and
// reported as appended=false. recorded_at is taken under the per-product
// lock, so rows of one product are written in chronological order.
func (l *PriceLedger) Append(ctx context.Context, productID uint, price decimal.Decimal, originalPrice, discountPercent *decimal.Decimal) (bool, error) {
	if productID == 0 {
		return false, ErrMissingProductID
	}
	if !price.IsPositive() {
		l.logger.Warn("ledger snapshot dropped", zap.Uint("product_id", productID), zap.String("price", price.String()))
		return false, nil
	}

	unlock := l.locks.Lock(productID)
	defer unlock()

	snapshot := &domain.PriceSnapshot{
		ProductID:       productID,
		Price:           price,
		OriginalPrice:   originalPrice,
		DiscountPercent: discountPercent,
		RecordedAt:      l.now().UTC(),
	}
	if err := l.snapshots.Append(ctx, snapshot); err != nil {
		return false, fmt.Errorf("append snapshot for product %d: %w", productID, err)
	}

	l.logger.Debug("ledger snapshot appended", zap.Uint("product_id", productID), zap.String("price", price.String()))
	return true, nil
}

func (l *PriceLedger) Stats(ctx context.Context, productID uint, window time.Duration) (PriceStats, error) {
	now := l.now().UTC()
	snapshots, err := l.snapshots.ListSince(ctx, productID, now.Add(-window))
	if err != nil {
		return PriceStats{}, fmt.Errorf("load history for product %d: %w", productID, err)
	}
	return computeStats(snapshots, now, l.cfg), nil
}

// MonthlyAverages returns the mean price per calendar month over the last two years.
func (l *PriceLedger) MonthlyAverages(ctx context.Context, productID uint) (map[time.Month]decimal.Decimal, error) {
	now := l.now().UTC()
	snapshots, err := l.snapshots.ListSince(ctx, productID, now.AddDate(-2, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("load history for product %d: %w", productID, err)
	}

	sums := make(map[time.Month]decimal.Decimal)
	counts := make(map[time.Month]int64)
	for _, snapshot := range snapshots {
		if !snapshot.Price.IsPositive() {
			continue
		}
		month := snapshot.RecordedAt.Month()
		sums[month] = sums[month].Add(snapshot.Price)
		counts[month]++
	}

	averages := make(map[time.Month]decimal.Decimal, len(sums))
	for month, sum := range sums {
		averages[month] = sum.Div(decimal.NewFromInt(counts[month])).Round(2)
	}
	return averages, nil
}

func computeStats(snapshots []domain.PriceSnapshot, now time.Time, cfg LedgerConfig) PriceStats {
	priced := make([]domain.PriceSnapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		if snapshot.Price.IsPositive() {
			priced = append(priced, snapshot)
		}
	}
	if len(priced) == 0 {
		return PriceStats{Trend: TrendStable}
	}

	first := priced[0]
	stats := PriceStats{
		Count:     len(priced),
		Min:       first.Price,
		Max:       first.Price,
		MinAt:     first.RecordedAt,
		MaxAt:     first.RecordedAt,
		Current:   priced[len(priced)-1].Price,
		Snapshots: priced,
	}

	sum := decimal.Zero
	for _, snapshot := range priced {
		sum = sum.Add(snapshot.Price)
		if snapshot.Price.LessThan(stats.Min) {
			stats.Min = snapshot.Price
			stats.MinAt = snapshot.RecordedAt
		}
		if snapshot.Price.GreaterThan(stats.Max) {
			stats.Max = snapshot.Price
			stats.MaxAt = snapshot.RecordedAt
		}
	}
	stats.Avg = sum.Div(decimal.NewFromInt(int64(len(priced))))
	stats.Trend, stats.TrendPercent = computeTrend(priced, now.Add(-cfg.TrendWindow), cfg.TrendThresholdPercent)
	return stats
}

// computeTrend compares the first and last snapshot recorded at or after since.
func computeTrend(snapshots []domain.PriceSnapshot, since time.Time, threshold decimal.Decimal) (Trend, decimal.Decimal) {
	var first, last *domain.PriceSnapshot
	count := 0
	for i := range snapshots {
		if snapshots[i].RecordedAt.Before(since) {
			continue
		}
		if first == nil {
			first = &snapshots[i]
		}
		last = &snapshots[i]
		count++
	}
	if count < 2 || !first.Price.IsPositive() {
		return TrendStable, decimal.Zero
	}

	percent := last.Price.Sub(first.Price).Div(first.Price).Mul(hundred)
	switch {
	case percent.GreaterThan(threshold):
		return TrendUp, percent
	case percent.LessThan(threshold.Neg()):
		return TrendDown, percent
	default:
		return TrendStable, percent
	}
}
