package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"go.uber.org/zap"
)

type CheckStatus string

const (
	CheckOK            CheckStatus = "ok"
	CheckQuotaExceeded CheckStatus = "quota_exceeded"
	CheckUnavailable   CheckStatus = "unavailable"
)

type CheckResult struct {
	Status   CheckStatus
	Quota    QuotaDecision
	Product  *domain.Product
	Snapshot *domain.ProductSnapshot
	Stats    PriceStats
	Verdict  Verdict
	Seasonal SeasonalOutlook
}

// PriceCheck is the on-demand flow: quota, fetch, record, analyze.
type PriceCheck struct {
	subscribers *SubscriberUsecase
	products    domain.ProductRepository
	quota       *QuotaGuard
	fetcher     domain.Fetcher
	ledger      *PriceLedger
	detector    *FakeDiscountDetector
	registry    *MonitorRegistry
	tiers       domain.TierTable
	logger      *zap.Logger
	now         func() time.Time
}

func NewPriceCheck(
	subscribers *SubscriberUsecase,
	products domain.ProductRepository,
	quota *QuotaGuard,
	fetcher domain.Fetcher,
	ledger *PriceLedger,
	detector *FakeDiscountDetector,
	registry *MonitorRegistry,
	tiers domain.TierTable,
	logger *zap.Logger,
) *PriceCheck {
	return &PriceCheck{
		subscribers: subscribers,
		products:    products,
		quota:       quota,
		fetcher:     fetcher,
		ledger:      ledger,
		detector:    detector,
		registry:    registry,
		tiers:       tiers,
		logger:      logger,
		now:         time.Now,
	}
}

// CheckURL parses a marketplace link and runs Check on it.
func (c *PriceCheck) CheckURL(ctx context.Context, telegramUserID int64, rawURL string) (CheckResult, error) {
	marketplace, externalID, err := domain.ParseProductURL(rawURL)
	if err != nil {
		return CheckResult{}, err
	}
	return c.Check(ctx, telegramUserID, marketplace, externalID, rawURL)
}

// Check consumes one unit of the daily quota before fetching, so a failed
// fetch still counts against it.
func (c *PriceCheck) Check(ctx context.Context, telegramUserID int64, marketplace domain.Marketplace, externalID, url string) (CheckResult, error) {
	subscriber, err := c.subscribers.StartOrGetSubscriber(ctx, telegramUserID, "")
	if err != nil {
		return CheckResult{}, fmt.Errorf("load subscriber: %w", err)
	}

	decision, err := c.quota.CheckAndConsume(ctx, subscriber.ID)
	if err != nil {
		return CheckResult{}, err
	}
	if !decision.Allowed {
		return CheckResult{Status: CheckQuotaExceeded, Quota: decision}, nil
	}

	logger := c.logger.With(
		zap.Int64("telegram_user_id", telegramUserID),
		zap.String("marketplace", string(marketplace)),
		zap.String("external_id", externalID),
	)

	snapshot, err := c.fetcher.Fetch(ctx, marketplace, externalID)
	if err != nil || snapshot == nil || !snapshot.Price.IsPositive() {
		logger.Warn("on-demand fetch failed", zap.Error(err))
		return CheckResult{Status: CheckUnavailable, Quota: decision}, nil
	}

	product, err := c.products.GetOrCreate(ctx, marketplace, externalID, url)
	if err != nil {
		return CheckResult{}, fmt.Errorf("get product: %w", err)
	}
	// A replayed snapshot may predate the last sweep; recording it would
	// roll the product back to an older price.
	if snapshot.Cached {
		logger.Debug("serving cached snapshot", zap.Time("fetched_at", snapshot.FetchedAt))
	} else {
		if err := c.products.ApplySnapshot(ctx, product.ID, *snapshot); err != nil {
			return CheckResult{}, fmt.Errorf("update product %d: %w", product.ID, err)
		}
		if _, err := c.ledger.Append(ctx, product.ID, snapshot.Price, snapshot.OriginalPrice, snapshot.DiscountPercent); err != nil {
			return CheckResult{}, err
		}
		applySnapshotToProduct(product, *snapshot)
	}

	historyDays := c.tiers.Limits(subscriber.EffectiveTier(c.now().UTC())).HistoryDays
	stats, err := c.ledger.Stats(ctx, product.ID, time.Duration(historyDays)*24*time.Hour)
	if err != nil {
		return CheckResult{}, err
	}

	verdict, err := c.detector.Evaluate(ctx, product.ID, snapshot.Price, snapshot.OriginalPrice)
	if err != nil {
		return CheckResult{}, err
	}

	monthly, err := c.ledger.MonthlyAverages(ctx, product.ID)
	if err != nil {
		return CheckResult{}, err
	}
	seasonal := seasonalOutlook(monthly, snapshot.Price, product.Category, c.now().UTC().Month())

	logger.Info("price check completed",
		zap.Uint("product_id", product.ID),
		zap.String("price", snapshot.Price.String()),
		zap.String("verdict", string(verdict.Kind)),
		zap.Bool("cached", snapshot.Cached),
	)

	return CheckResult{
		Status:   CheckOK,
		Quota:    decision,
		Product:  product,
		Snapshot: snapshot,
		Stats:    stats,
		Verdict:  verdict,
		Seasonal: seasonal,
	}, nil
}

// Watch registers a monitor on a listing, creating the product row when it
// has not been seen yet. It does not consume check quota.
func (c *PriceCheck) Watch(ctx context.Context, telegramUserID int64, rawURL string, opts MonitorOptions) (AddOutcome, *domain.Monitor, error) {
	marketplace, externalID, err := domain.ParseProductURL(rawURL)
	if err != nil {
		return "", nil, err
	}

	subscriber, err := c.subscribers.StartOrGetSubscriber(ctx, telegramUserID, "")
	if err != nil {
		return "", nil, fmt.Errorf("load subscriber: %w", err)
	}

	product, err := c.products.GetOrCreate(ctx, marketplace, externalID, rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("get product: %w", err)
	}

	return c.registry.Add(ctx, subscriber.ID, product.ID, opts)
}

func applySnapshotToProduct(product *domain.Product, snapshot domain.ProductSnapshot) {
	price := snapshot.Price
	product.CurrentPrice = &price
	product.OriginalPrice = snapshot.OriginalPrice
	if snapshot.Title != "" {
		product.Title = snapshot.Title
	}
	if snapshot.Brand != "" {
		product.Brand = snapshot.Brand
	}
	if snapshot.Category != "" {
		product.Category = snapshot.Category
	}
	if snapshot.SellerName != "" {
		product.SellerName = snapshot.SellerName
	}
	if snapshot.Rating != nil {
		product.Rating = snapshot.Rating
	}
	if snapshot.ReviewCount > 0 {
		product.ReviewCount = snapshot.ReviewCount
	}
}
