package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrProductUnavailable = errors.New("product unavailable")

type Marketplace string

const (
	MarketplaceWildberries Marketplace = "wildberries"
	MarketplaceOzon        Marketplace = "ozon"
	MarketplaceAliExpress  Marketplace = "aliexpress"
	MarketplaceAmazon      Marketplace = "amazon"
)

var Marketplaces = []Marketplace{
	MarketplaceWildberries,
	MarketplaceOzon,
	MarketplaceAliExpress,
	MarketplaceAmazon,
}

func ParseMarketplace(value string) (Marketplace, error) {
	normalized := Marketplace(strings.ToLower(strings.TrimSpace(value)))
	for _, marketplace := range Marketplaces {
		if marketplace == normalized {
			return marketplace, nil
		}
	}
	return "", fmt.Errorf("unknown marketplace %q", value)
}

type Product struct {
	ID            uint
	Marketplace   Marketplace
	ExternalID    string
	URL           string
	Title         string
	Brand         string
	Category      string
	SellerName    string
	CurrentPrice  *decimal.Decimal
	OriginalPrice *decimal.Decimal
	Rating        *decimal.Decimal
	ReviewCount   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PriceSnapshot is one immutable ledger row.
type PriceSnapshot struct {
	ID              uint
	ProductID       uint
	Price           decimal.Decimal
	OriginalPrice   *decimal.Decimal
	DiscountPercent *decimal.Decimal
	RecordedAt      time.Time
}

// ProductSnapshot is what a Fetcher returns for a marketplace listing.
type ProductSnapshot struct {
	Title           string
	Brand           string
	Category        string
	SellerName      string
	Price           decimal.Decimal
	OriginalPrice   *decimal.Decimal
	DiscountPercent *decimal.Decimal
	Rating          *decimal.Decimal
	ReviewCount     int
	FetchedAt       time.Time
	// Cached marks a snapshot replayed from a cache rather than observed now.
	Cached bool
}

// Fetcher loads a normalized snapshot of a listing. Any failure (network,
// parse, not found) is reported as an error; callers treat every error as
// "no update this cycle".
type Fetcher interface {
	Fetch(ctx context.Context, marketplace Marketplace, externalID string) (*ProductSnapshot, error)
}

type SnapshotCache interface {
	Get(ctx context.Context, marketplace Marketplace, externalID string) (*ProductSnapshot, error)
	Set(ctx context.Context, marketplace Marketplace, externalID string, snapshot ProductSnapshot, ttl time.Duration) error
}
