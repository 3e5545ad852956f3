package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DedupFetcher collapses concurrent fetches of the same listing into one
// upstream call. Every caller receives its own copy of the snapshot.
//
// The shared call is detached from the caller that started it and bounded
// by timeout instead, so one caller giving up does not fail the others.
type DedupFetcher struct {
	next    domain.Fetcher
	timeout time.Duration
	group   singleflight.Group
}

func NewDedupFetcher(next domain.Fetcher, timeout time.Duration) *DedupFetcher {
	return &DedupFetcher{next: next, timeout: timeout}
}

func (d *DedupFetcher) Fetch(ctx context.Context, marketplace domain.Marketplace, externalID string) (*domain.ProductSnapshot, error) {
	key := fmt.Sprintf("%s:%s", marketplace, externalID)
	results := d.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		return d.next.Fetch(callCtx, marketplace, externalID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		snapshot, _ := result.Val.(*domain.ProductSnapshot)
		if snapshot == nil {
			return nil, nil
		}
		clone := *snapshot
		return &clone, nil
	}
}
