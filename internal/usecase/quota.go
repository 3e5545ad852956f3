package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
)

type QuotaDecision struct {
	Allowed bool
	Used    int
	Limit   int
}

func (d QuotaDecision) Remaining() int {
	if d.Used >= d.Limit {
		return 0
	}
	return d.Limit - d.Used
}

// QuotaGuard enforces the daily on-demand check limit. The read, the day
// rollover and the increment happen inside one UpdateUsage call, which holds
// the subscriber row exclusively, so concurrent checks cannot overshoot.
type QuotaGuard struct {
	subscribers domain.SubscriberRepository
	tiers       domain.TierTable
	now         func() time.Time
}

func NewQuotaGuard(subscribers domain.SubscriberRepository, tiers domain.TierTable) *QuotaGuard {
	return &QuotaGuard{subscribers: subscribers, tiers: tiers, now: time.Now}
}

func (q *QuotaGuard) CheckAndConsume(ctx context.Context, subscriberID uint) (QuotaDecision, error) {
	var decision QuotaDecision
	err := q.subscribers.UpdateUsage(ctx, subscriberID, func(subscriber *domain.Subscriber) bool {
		now := q.now().UTC()
		limit := q.tiers.Limits(subscriber.EffectiveTier(now)).ChecksPerDay
		decision = QuotaDecision{Limit: limit}

		changed := false
		if needsReset(subscriber.ChecksResetAt, now) {
			subscriber.ChecksToday = 0
			subscriber.ChecksResetAt = &now
			changed = true
		}

		if subscriber.ChecksToday >= limit {
			decision.Used = subscriber.ChecksToday
			return changed
		}

		subscriber.ChecksToday++
		decision.Allowed = true
		decision.Used = subscriber.ChecksToday
		return true
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return QuotaDecision{}, ErrSubscriberNotRegistered
		}
		return QuotaDecision{}, fmt.Errorf("consume quota for subscriber %d: %w", subscriberID, err)
	}
	return decision, nil
}

// needsReset reports whether the counter belongs to an earlier UTC day.
func needsReset(resetAt *time.Time, now time.Time) bool {
	if resetAt == nil {
		return true
	}
	y1, m1, d1 := resetAt.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}
