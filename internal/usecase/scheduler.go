package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Notifier interface {
	Notify(telegramUserID int64, text string) error
}

type SchedulerConfig struct {
	Schedule   string
	RunOnStart bool
	FetchDelay time.Duration
	CronLogger cron.Logger
}

type SweepReport struct {
	Monitors     int
	Products     int
	Refreshed    int
	Failed       int
	Notified     int
	NotifyFailed int
}

type trigger string

const (
	triggerTarget trigger = "target"
	triggerDrop   trigger = "drop"
)

// MonitoringScheduler periodically refreshes every watched product once per
// sweep and notifies the monitors whose conditions are met. Sweeps never
// overlap: a tick that arrives while a sweep is running is skipped.
type MonitoringScheduler struct {
	registry *MonitorRegistry
	products domain.ProductRepository
	ledger   *PriceLedger
	fetcher  domain.Fetcher
	notifier Notifier
	cfg      SchedulerConfig
	logger   *zap.Logger
	limiter  *rate.Limiter

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running sync.WaitGroup
}

func NewMonitoringScheduler(registry *MonitorRegistry, products domain.ProductRepository, ledger *PriceLedger, fetcher domain.Fetcher, notifier Notifier, cfg SchedulerConfig, logger *zap.Logger) *MonitoringScheduler {
	limit := rate.Inf
	if cfg.FetchDelay > 0 {
		limit = rate.Every(cfg.FetchDelay)
	}
	if cfg.CronLogger == nil {
		cfg.CronLogger = cron.DiscardLogger
	}
	return &MonitoringScheduler{
		registry: registry,
		products: products,
		ledger:   ledger,
		fetcher:  fetcher,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (s *MonitoringScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	schedule, err := cron.ParseStandard(s.cfg.Schedule)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", s.cfg.Schedule, err)
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	job := cron.NewChain(
		cron.Recover(s.cfg.CronLogger),
		cron.SkipIfStillRunning(s.cfg.CronLogger),
	).Then(cron.FuncJob(func() { s.runSweep(sweepCtx) }))

	c := cron.New(cron.WithLogger(s.cfg.CronLogger))
	c.Schedule(schedule, job)
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.logger.Info("monitoring scheduler started", zap.String("schedule", s.cfg.Schedule), zap.Duration("fetch_delay", s.cfg.FetchDelay))

	if s.cfg.RunOnStart {
		s.running.Add(1)
		go func() {
			defer s.running.Done()
			job.Run()
		}()
	}
	return nil
}

// Stop cancels an in-flight sweep and waits up to timeout for it to return.
// The sweep may end partially; the next start picks up from stored state.
func (s *MonitoringScheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	cancel()
	stopped := c.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("monitoring scheduler stopped")
	case <-time.After(timeout):
		s.logger.Warn("timeout waiting for monitoring sweep to stop", zap.Duration("timeout", timeout))
	}
}

func (s *MonitoringScheduler) runSweep(ctx context.Context) {
	started := time.Now()
	report, err := s.Sweep(ctx)
	fields := []zap.Field{
		zap.Int("monitors", report.Monitors),
		zap.Int("products", report.Products),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("failed", report.Failed),
		zap.Int("notified", report.Notified),
		zap.Int("notify_failed", report.NotifyFailed),
		zap.Duration("elapsed", time.Since(started)),
	}
	if err != nil {
		s.logger.Warn("monitoring sweep aborted", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info("monitoring sweep finished", fields...)
}

type productGroup struct {
	product domain.Product
	entries []domain.MonitorEntry
}

// Sweep runs one monitoring pass. Each distinct product is fetched once no
// matter how many subscribers watch it. A failure on one product never
// aborts the pass; only context cancellation does.
func (s *MonitoringScheduler) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	entries, err := s.registry.AllActive(ctx)
	if err != nil {
		return report, fmt.Errorf("list active monitors: %w", err)
	}
	groups := groupByProduct(entries)
	report.Monitors = len(entries)
	report.Products = len(groups)

	for _, group := range groups {
		if err := s.limiter.Wait(ctx); err != nil {
			return report, err
		}

		newPrice, ok := s.refresh(ctx, group.product)
		if !ok {
			report.Failed++
			continue
		}
		report.Refreshed++

		oldPrice := newPrice
		if group.product.CurrentPrice != nil {
			oldPrice = *group.product.CurrentPrice
		}

		for _, entry := range group.entries {
			kind, fire := evaluateMonitor(entry.Monitor, oldPrice, newPrice)
			if !fire {
				continue
			}
			if s.notify(ctx, entry, kind, oldPrice, newPrice) {
				report.Notified++
			} else {
				report.NotifyFailed++
			}
		}
	}
	return report, nil
}

func groupByProduct(entries []domain.MonitorEntry) []productGroup {
	index := make(map[uint]int)
	groups := make([]productGroup, 0)
	for _, entry := range entries {
		i, ok := index[entry.Product.ID]
		if !ok {
			i = len(groups)
			index[entry.Product.ID] = i
			groups = append(groups, productGroup{product: entry.Product})
		}
		groups[i].entries = append(groups[i].entries, entry)
	}
	return groups
}

// refresh fetches the product and records the observation. ok is false when
// there is nothing to evaluate this cycle.
func (s *MonitoringScheduler) refresh(ctx context.Context, product domain.Product) (price decimal.Decimal, ok bool) {
	logger := s.logger.With(zap.Uint("product_id", product.ID), zap.String("marketplace", string(product.Marketplace)), zap.String("external_id", product.ExternalID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while refreshing product", zap.Any("panic", r))
			ok = false
		}
	}()

	snapshot, err := s.fetcher.Fetch(ctx, product.Marketplace, product.ExternalID)
	if err != nil {
		logger.Warn("fetch failed", zap.Error(err))
		return decimal.Zero, false
	}
	if snapshot == nil || !snapshot.Price.IsPositive() {
		logger.Warn("fetch returned no usable price")
		return decimal.Zero, false
	}

	if _, err := s.ledger.Append(ctx, product.ID, snapshot.Price, snapshot.OriginalPrice, snapshot.DiscountPercent); err != nil {
		logger.Error("failed to append price snapshot", zap.Error(err))
		return decimal.Zero, false
	}
	if err := s.products.ApplySnapshot(ctx, product.ID, *snapshot); err != nil {
		logger.Error("failed to update product", zap.Error(err))
		return decimal.Zero, false
	}
	return snapshot.Price, true
}

// evaluateMonitor decides whether a monitor fires. A notification is only
// sent when the price is strictly below the last notified one, so an
// unchanged or rising price never repeats an alert. The target condition
// wins over any-drop when both hold.
func evaluateMonitor(monitor domain.Monitor, oldPrice, newPrice decimal.Decimal) (trigger, bool) {
	if monitor.LastNotifiedPrice != nil && !newPrice.LessThan(*monitor.LastNotifiedPrice) {
		return "", false
	}
	if monitor.TargetPrice != nil && newPrice.LessThanOrEqual(*monitor.TargetPrice) {
		return triggerTarget, true
	}
	if monitor.NotifyAnyDrop && newPrice.LessThan(oldPrice) {
		return triggerDrop, true
	}
	return "", false
}

// notify sends the message and records the price only on successful
// delivery; a failed send is retried on the next sweep.
func (s *MonitoringScheduler) notify(ctx context.Context, entry domain.MonitorEntry, kind trigger, oldPrice, newPrice decimal.Decimal) bool {
	logger := s.logger.With(
		zap.Uint("monitor_id", entry.Monitor.ID),
		zap.Int64("telegram_user_id", entry.Subscriber.TelegramUserID),
		zap.String("trigger", string(kind)),
	)

	text := formatNotification(kind, entry, oldPrice, newPrice)
	if err := s.notifier.Notify(entry.Subscriber.TelegramUserID, text); err != nil {
		logger.Warn("failed to send price notification", zap.Error(err))
		return false
	}
	if err := s.registry.MarkNotified(ctx, entry.Monitor.ID, newPrice); err != nil {
		logger.Error("failed to record notified price", zap.Error(err))
	}
	logger.Info("price notification sent", zap.String("price", newPrice.String()))
	return true
}

func formatNotification(kind trigger, entry domain.MonitorEntry, oldPrice, newPrice decimal.Decimal) string {
	title := entry.Product.Title
	if title == "" {
		title = fmt.Sprintf("%s #%s", entry.Product.Marketplace, entry.Product.ExternalID)
	}

	if kind == triggerTarget {
		return fmt.Sprintf("🎯 Target price reached!\n\n%s\n\nTarget: %s\nNow: %s\n\n%s",
			title, formatPrice(*entry.Monitor.TargetPrice), formatPrice(newPrice), entry.Product.URL)
	}

	saved := oldPrice.Sub(newPrice)
	return fmt.Sprintf("📉 Price dropped!\n\n%s\n\nWas: %s\nNow: %s\nYou save: %s (-%s%%)\n\n%s",
		title, formatPrice(oldPrice), formatPrice(newPrice), formatPrice(saved),
		percentBelow(oldPrice, newPrice).StringFixed(0), entry.Product.URL)
}
