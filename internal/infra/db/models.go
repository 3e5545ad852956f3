package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type subscriberModel struct {
	ID             uint   `gorm:"primaryKey"`
	TelegramUserID int64  `gorm:"uniqueIndex;not null"`
	Username       string `gorm:""`
	Tier           string `gorm:"size:20;not null"`
	TierExpiresAt  *time.Time
	ChecksToday    int `gorm:"not null"`
	ChecksResetAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (subscriberModel) TableName() string { return "subscribers" }

type productModel struct {
	ID            uint                `gorm:"primaryKey"`
	Marketplace   string              `gorm:"size:50;not null;uniqueIndex:idx_products_marketplace_external,priority:1"`
	ExternalID    string              `gorm:"size:255;not null;uniqueIndex:idx_products_marketplace_external,priority:2"`
	URL           string              `gorm:"type:text"`
	Title         string              `gorm:"type:text"`
	Brand         string              `gorm:"size:255"`
	Category      string              `gorm:"size:255"`
	SellerName    string              `gorm:"size:255"`
	CurrentPrice  decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	OriginalPrice decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	Rating        decimal.NullDecimal `gorm:"type:numeric(4,2)"`
	ReviewCount   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (productModel) TableName() string { return "products" }

type snapshotModel struct {
	ID              uint                `gorm:"primaryKey"`
	ProductID       uint                `gorm:"not null;index:idx_price_snapshots_product_recorded,priority:1"`
	Product         *productModel       `gorm:"constraint:OnDelete:CASCADE"`
	Price           decimal.Decimal     `gorm:"type:numeric(14,2);not null"`
	OriginalPrice   decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	DiscountPercent decimal.NullDecimal `gorm:"type:numeric(6,2)"`
	RecordedAt      time.Time           `gorm:"not null;index:idx_price_snapshots_product_recorded,priority:2"`
}

func (snapshotModel) TableName() string { return "price_snapshots" }

// Booleans carry no gorm default: gorm would substitute the default for an
// explicit false on insert.
type monitorModel struct {
	ID                uint                `gorm:"primaryKey"`
	SubscriberID      uint                `gorm:"not null;uniqueIndex:idx_monitors_subscriber_product,priority:1"`
	Subscriber        *subscriberModel    `gorm:"constraint:OnDelete:CASCADE"`
	ProductID         uint                `gorm:"not null;uniqueIndex:idx_monitors_subscriber_product,priority:2;index"`
	Product           *productModel       `gorm:"constraint:OnDelete:CASCADE"`
	TargetPrice       decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	NotifyAnyDrop     bool                `gorm:"not null"`
	LastNotifiedPrice decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	Active            bool                `gorm:"not null;index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (monitorModel) TableName() string { return "monitors" }

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*value)
}

func decimalPtr(value decimal.NullDecimal) *decimal.Decimal {
	if !value.Valid {
		return nil
	}
	d := value.Decimal
	return &d
}
