package config

import (
	"context"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	TelegramBotToken  string        `env:"TELEGRAM_BOT_TOKEN,required"`
	DBHost            string        `env:"DB_HOST,required"`
	DBPort            int           `env:"DB_PORT,default=5432"`
	DBUser            string        `env:"DB_USER,required"`
	DBPassword        string        `env:"DB_PASSWORD,required"`
	DBName            string        `env:"DB_NAME,required"`
	DBSSLMode         string        `env:"DB_SSLMODE,default=disable"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`

	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB,default=0"`
	SnapshotCacheTTL time.Duration `env:"SNAPSHOT_CACHE_TTL,default=10m"`

	Fetch    FetchConfig    `env:", prefix=FETCH_"`
	Monitor  MonitorConfig  `env:", prefix=MONITOR_"`
	Ledger   LedgerConfig   `env:", prefix=LEDGER_"`
	Detector DetectorConfig `env:", prefix=DETECTOR_"`

	TierFree    TierConfig `env:", prefix=TIER_FREE_"`
	TierPro     TierConfig `env:", prefix=TIER_PRO_"`
	TierPremium TierConfig `env:", prefix=TIER_PREMIUM_"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogFile  string `env:"LOG_FILE"`
}

// FetchConfig lists normalizer endpoints per marketplace, tried in order.
// A marketplace without endpoints is not served.
type FetchConfig struct {
	Timeout              time.Duration `env:"TIMEOUT,default=15s"`
	CallTimeout          time.Duration `env:"CALL_TIMEOUT,default=60s"`
	WildberriesEndpoints []string      `env:"WILDBERRIES_ENDPOINTS"`
	OzonEndpoints        []string      `env:"OZON_ENDPOINTS"`
	AliExpressEndpoints  []string      `env:"ALIEXPRESS_ENDPOINTS"`
	AmazonEndpoints      []string      `env:"AMAZON_ENDPOINTS"`
}

func (c FetchConfig) Endpoints() map[domain.Marketplace][]string {
	return map[domain.Marketplace][]string{
		domain.MarketplaceWildberries: c.WildberriesEndpoints,
		domain.MarketplaceOzon:        c.OzonEndpoints,
		domain.MarketplaceAliExpress:  c.AliExpressEndpoints,
		domain.MarketplaceAmazon:      c.AmazonEndpoints,
	}
}

type MonitorConfig struct {
	Schedule    string        `env:"SCHEDULE,default=@every 3h"`
	RunOnStart  bool          `env:"RUN_ON_START,default=true"`
	FetchDelay  time.Duration `env:"FETCH_DELAY,default=2s"`
	StopTimeout time.Duration `env:"STOP_TIMEOUT,default=30s"`
}

type LedgerConfig struct {
	TrendWindowDays       int     `env:"TREND_WINDOW_DAYS,default=30"`
	TrendThresholdPercent float64 `env:"TREND_THRESHOLD_PERCENT,default=3"`
}

type DetectorConfig struct {
	HistoryDays            int     `env:"HISTORY_DAYS,default=180"`
	MarkupLookbackDays     int     `env:"MARKUP_LOOKBACK_DAYS,default=60"`
	FakeRatio              float64 `env:"FAKE_RATIO,default=0.95"`
	FloorRatio             float64 `env:"FLOOR_RATIO,default=1.05"`
	CeilingRatio           float64 `env:"CEILING_RATIO,default=0.95"`
	MarkupThresholdPercent float64 `env:"MARKUP_THRESHOLD_PERCENT,default=15"`
}

// TierConfig fields are pre-filled in LoadWith and only replaced when the
// variable is present.
type TierConfig struct {
	ChecksPerDay int `env:"CHECKS_PER_DAY,overwrite"`
	MonitorItems int `env:"MONITOR_ITEMS,overwrite"`
	HistoryDays  int `env:"HISTORY_DAYS,overwrite"`
}

func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	cfg := Config{
		TierFree:    TierConfig{ChecksPerDay: 3, MonitorItems: 0, HistoryDays: 30},
		TierPro:     TierConfig{ChecksPerDay: 30, MonitorItems: 20, HistoryDays: 365},
		TierPremium: TierConfig{ChecksPerDay: 999999, MonitorItems: 50, HistoryDays: 365},
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Tiers() domain.TierTable {
	return domain.TierTable{
		domain.TierFree:    c.TierFree.limits(),
		domain.TierPro:     c.TierPro.limits(),
		domain.TierPremium: c.TierPremium.limits(),
	}
}

func (t TierConfig) limits() domain.TierLimits {
	return domain.TierLimits{
		ChecksPerDay: t.ChecksPerDay,
		MonitorItems: t.MonitorItems,
		HistoryDays:  t.HistoryDays,
	}
}
