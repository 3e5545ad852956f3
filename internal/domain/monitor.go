package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Monitor struct {
	ID                uint
	SubscriberID      uint
	ProductID         uint
	TargetPrice       *decimal.Decimal
	NotifyAnyDrop     bool
	LastNotifiedPrice *decimal.Decimal
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MonitorEntry is a monitor joined with the product it watches and the
// subscriber who owns it.
type MonitorEntry struct {
	Monitor    Monitor
	Product    Product
	Subscriber Subscriber
}
