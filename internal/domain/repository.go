package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

type SubscriberRepository interface {
	GetByTelegramID(ctx context.Context, telegramUserID int64) (*Subscriber, error)
	GetByID(ctx context.Context, subscriberID uint) (*Subscriber, error)
	Create(ctx context.Context, subscriber *Subscriber) error
	SetTier(ctx context.Context, subscriberID uint, tier Tier, expiresAt time.Time) error
	// UpdateUsage runs apply against the freshest copy of the subscriber while
	// holding it exclusively, and persists the usage counters when apply
	// returns true.
	UpdateUsage(ctx context.Context, subscriberID uint, apply func(subscriber *Subscriber) bool) error
}

type ProductRepository interface {
	GetOrCreate(ctx context.Context, marketplace Marketplace, externalID, url string) (*Product, error)
	GetByID(ctx context.Context, productID uint) (*Product, error)
	ApplySnapshot(ctx context.Context, productID uint, snapshot ProductSnapshot) error
}

type SnapshotRepository interface {
	Append(ctx context.Context, snapshot *PriceSnapshot) error
	// ListSince returns snapshots recorded at or after since, oldest first.
	ListSince(ctx context.Context, productID uint, since time.Time) ([]PriceSnapshot, error)
}

type MonitorRepository interface {
	GetByPair(ctx context.Context, subscriberID, productID uint) (*Monitor, error)
	Create(ctx context.Context, monitor *Monitor) error
	Reactivate(ctx context.Context, monitorID uint, targetPrice *decimal.Decimal, notifyAnyDrop bool) error
	Deactivate(ctx context.Context, subscriberID, productID uint) error
	CountActive(ctx context.Context, subscriberID uint) (int, error)
	ListActiveBySubscriber(ctx context.Context, subscriberID uint) ([]MonitorEntry, error)
	ListAllActive(ctx context.Context) ([]MonitorEntry, error)
	MarkNotified(ctx context.Context, monitorID uint, price decimal.Decimal) error
}
