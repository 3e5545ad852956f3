package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// SnapshotCache keeps the latest fetched snapshot per listing for a short TTL.
type SnapshotCache struct {
	client *redis.Client
}

func NewSnapshotCache(ctx context.Context, opts Options) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}

	return &SnapshotCache{client: client}, nil
}

type cachedSnapshot struct {
	Title           string           `json:"title"`
	Brand           string           `json:"brand"`
	Category        string           `json:"category"`
	SellerName      string           `json:"seller_name"`
	Price           decimal.Decimal  `json:"price"`
	OriginalPrice   *decimal.Decimal `json:"original_price"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	Rating          *decimal.Decimal `json:"rating"`
	ReviewCount     int              `json:"review_count"`
	FetchedAt       time.Time        `json:"fetched_at"`
}

func snapshotKey(marketplace domain.Marketplace, externalID string) string {
	return fmt.Sprintf("snapshot:%s:%s", marketplace, externalID)
}

// Get returns nil without error on a cache miss.
func (c *SnapshotCache) Get(ctx context.Context, marketplace domain.Marketplace, externalID string) (*domain.ProductSnapshot, error) {
	data, err := c.client.Get(ctx, snapshotKey(marketplace, externalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached cachedSnapshot
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &domain.ProductSnapshot{
		Title:           cached.Title,
		Brand:           cached.Brand,
		Category:        cached.Category,
		SellerName:      cached.SellerName,
		Price:           cached.Price,
		OriginalPrice:   cached.OriginalPrice,
		DiscountPercent: cached.DiscountPercent,
		Rating:          cached.Rating,
		ReviewCount:     cached.ReviewCount,
		FetchedAt:       cached.FetchedAt,
	}, nil
}

func (c *SnapshotCache) Set(ctx context.Context, marketplace domain.Marketplace, externalID string, snapshot domain.ProductSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(cachedSnapshot{
		Title:           snapshot.Title,
		Brand:           snapshot.Brand,
		Category:        snapshot.Category,
		SellerName:      snapshot.SellerName,
		Price:           snapshot.Price,
		OriginalPrice:   snapshot.OriginalPrice,
		DiscountPercent: snapshot.DiscountPercent,
		Rating:          snapshot.Rating,
		ReviewCount:     snapshot.ReviewCount,
		FetchedAt:       snapshot.FetchedAt,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(marketplace, externalID), data, ttl).Err()
}

func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
