package app

import (
	"context"
	"time"

	"github.com/NasaVasa/priceghost/internal/config"
	"github.com/NasaVasa/priceghost/internal/delivery/telegram"
	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/NasaVasa/priceghost/internal/infra/cache/redis"
	"github.com/NasaVasa/priceghost/internal/infra/db"
	"github.com/NasaVasa/priceghost/internal/infra/log"
	"github.com/NasaVasa/priceghost/internal/infra/marketplace"
	"github.com/NasaVasa/priceghost/internal/usecase"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type App struct {
	scheduler   *usecase.MonitoringScheduler
	check       *usecase.PriceCheck
	registry    *usecase.MonitorRegistry
	subscribers *usecase.SubscriberUsecase
	ledger      *usecase.PriceLedger
	stopTimeout time.Duration
	logger      *zap.Logger
	cleanupFns  []func() error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := log.NewLogger(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &App{logger: logger, stopTimeout: cfg.Monitor.StopTimeout}
	a.cleanupFns = append(a.cleanupFns, func() error {
		sqlDB, err := dbConn.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	subscriberRepo := db.NewSubscriberRepository(dbConn)
	productRepo := db.NewProductRepository(dbConn)
	snapshotRepo := db.NewSnapshotRepository(dbConn)
	monitorRepo := db.NewMonitorRepository(dbConn)

	router := marketplace.NewRouterFromEndpoints(cfg.Fetch.Endpoints(), cfg.Fetch.Timeout, logger.Named("marketplace"))
	if len(router.Marketplaces()) == 0 {
		logger.Warn("no marketplace endpoints configured, every fetch will fail")
	}
	fetcher := marketplace.NewDedupFetcher(router, cfg.Fetch.CallTimeout)

	var checkFetcher domain.Fetcher = fetcher
	if cfg.RedisAddr != "" {
		cache, err := redis.NewSnapshotCache(ctx, redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			a.Shutdown()
			return nil, err
		}
		a.cleanupFns = append(a.cleanupFns, cache.Close)
		checkFetcher = marketplace.NewCachedFetcher(fetcher, cache, cfg.SnapshotCacheTTL, logger)
	}

	api, err := telegram.NewAPI(cfg.TelegramBotToken)
	if err != nil {
		a.Shutdown()
		return nil, err
	}
	notifier := telegram.NewNotifier(api, logger.Named("telegram"))

	tiers := cfg.Tiers()
	ledger := usecase.NewPriceLedger(snapshotRepo, ledgerConfig(cfg.Ledger), logger.Named("ledger"))
	detector := usecase.NewFakeDiscountDetector(snapshotRepo, detectorConfig(cfg.Detector))
	quota := usecase.NewQuotaGuard(subscriberRepo, tiers)
	registry := usecase.NewMonitorRegistry(subscriberRepo, monitorRepo, tiers)
	subscribers := usecase.NewSubscriberUsecase(subscriberRepo, monitorRepo, tiers)

	a.ledger = ledger
	a.registry = registry
	a.subscribers = subscribers
	a.check = usecase.NewPriceCheck(subscribers, productRepo, quota, checkFetcher, ledger, detector, registry, tiers, logger.Named("check"))
	a.scheduler = usecase.NewMonitoringScheduler(registry, productRepo, ledger, fetcher, notifier, usecase.SchedulerConfig{
		Schedule:   cfg.Monitor.Schedule,
		RunOnStart: cfg.Monitor.RunOnStart,
		FetchDelay: cfg.Monitor.FetchDelay,
		CronLogger: log.CronLogger(logger),
	}, logger.Named("scheduler"))

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("priceghost service starting")
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("priceghost service started")
	<-ctx.Done()
	return nil
}

func (a *App) Shutdown() {
	a.logger.Info("priceghost service shutting down")
	if a.scheduler != nil {
		a.scheduler.Stop(a.stopTimeout)
	}
	for i := len(a.cleanupFns) - 1; i >= 0; i-- {
		if err := a.cleanupFns[i](); err != nil {
			a.logger.Warn("cleanup failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *App) PriceCheck() *usecase.PriceCheck {
	return a.check
}

func (a *App) Monitors() *usecase.MonitorRegistry {
	return a.registry
}

func (a *App) Subscribers() *usecase.SubscriberUsecase {
	return a.subscribers
}

func (a *App) Ledger() *usecase.PriceLedger {
	return a.ledger
}

func ledgerConfig(cfg config.LedgerConfig) usecase.LedgerConfig {
	return usecase.LedgerConfig{
		TrendWindow:           days(cfg.TrendWindowDays),
		TrendThresholdPercent: decimal.NewFromFloat(cfg.TrendThresholdPercent),
	}
}

func detectorConfig(cfg config.DetectorConfig) usecase.DetectorConfig {
	return usecase.DetectorConfig{
		HistoryWindow:          days(cfg.HistoryDays),
		MarkupLookback:         days(cfg.MarkupLookbackDays),
		FakeRatio:              decimal.NewFromFloat(cfg.FakeRatio),
		FloorRatio:             decimal.NewFromFloat(cfg.FloorRatio),
		CeilingRatio:           decimal.NewFromFloat(cfg.CeilingRatio),
		MarkupThresholdPercent: decimal.NewFromFloat(cfg.MarkupThresholdPercent),
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
