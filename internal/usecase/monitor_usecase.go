package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/shopspring/decimal"
)

type AddOutcome string

const (
	MonitorAdded          AddOutcome = "added"
	MonitorUpdated        AddOutcome = "updated"
	MonitorLimitExceeded  AddOutcome = "limit_exceeded"
	MonitorTierIneligible AddOutcome = "tier_ineligible"
)

type MonitorOptions struct {
	TargetPrice   *decimal.Decimal
	NotifyAnyDrop bool
}

// MonitorRegistry owns the (subscriber, product) watch list. Mutations of one
// subscriber are serialized so the capacity check and the insert cannot
// interleave with a concurrent Add.
type MonitorRegistry struct {
	subscribers domain.SubscriberRepository
	monitors    domain.MonitorRepository
	tiers       domain.TierTable
	locks       *keyedMutex[uint]
	now         func() time.Time
}

func NewMonitorRegistry(subscribers domain.SubscriberRepository, monitors domain.MonitorRepository, tiers domain.TierTable) *MonitorRegistry {
	return &MonitorRegistry{
		subscribers: subscribers,
		monitors:    monitors,
		tiers:       tiers,
		locks:       newKeyedMutex[uint](),
		now:         time.Now,
	}
}

func (r *MonitorRegistry) Add(ctx context.Context, subscriberID, productID uint, opts MonitorOptions) (AddOutcome, *domain.Monitor, error) {
	if opts.TargetPrice != nil && !opts.TargetPrice.IsPositive() {
		return "", nil, ErrInvalidPrice
	}

	subscriber, err := r.subscribers.GetByID(ctx, subscriberID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, ErrSubscriberNotRegistered
		}
		return "", nil, err
	}

	limits := r.tiers.Limits(subscriber.EffectiveTier(r.now().UTC()))
	if limits.MonitorItems <= 0 {
		return MonitorTierIneligible, nil, nil
	}

	unlock := r.locks.Lock(subscriberID)
	defer unlock()

	existing, err := r.monitors.GetByPair(ctx, subscriberID, productID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", nil, fmt.Errorf("load monitor: %w", err)
	}

	// Updating an already active row does not change the active count.
	if existing != nil && existing.Active {
		return r.reactivate(ctx, existing, opts)
	}

	active, err := r.monitors.CountActive(ctx, subscriberID)
	if err != nil {
		return "", nil, fmt.Errorf("count monitors: %w", err)
	}
	if active >= limits.MonitorItems {
		return MonitorLimitExceeded, nil, nil
	}

	if existing != nil {
		return r.reactivate(ctx, existing, opts)
	}

	monitor := &domain.Monitor{
		SubscriberID:  subscriberID,
		ProductID:     productID,
		TargetPrice:   opts.TargetPrice,
		NotifyAnyDrop: opts.NotifyAnyDrop,
		Active:        true,
	}
	if err := r.monitors.Create(ctx, monitor); err != nil {
		return "", nil, fmt.Errorf("create monitor: %w", err)
	}
	return MonitorAdded, monitor, nil
}

func (r *MonitorRegistry) reactivate(ctx context.Context, existing *domain.Monitor, opts MonitorOptions) (AddOutcome, *domain.Monitor, error) {
	if err := r.monitors.Reactivate(ctx, existing.ID, opts.TargetPrice, opts.NotifyAnyDrop); err != nil {
		return "", nil, fmt.Errorf("reactivate monitor %d: %w", existing.ID, err)
	}
	updated := *existing
	updated.TargetPrice = opts.TargetPrice
	updated.NotifyAnyDrop = opts.NotifyAnyDrop
	updated.Active = true
	return MonitorUpdated, &updated, nil
}

// Remove deactivates the monitor. The row is kept for a later re-add.
func (r *MonitorRegistry) Remove(ctx context.Context, subscriberID, productID uint) error {
	unlock := r.locks.Lock(subscriberID)
	defer unlock()

	if err := r.monitors.Deactivate(ctx, subscriberID, productID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrMonitorNotFound
		}
		return err
	}
	return nil
}

func (r *MonitorRegistry) ListActive(ctx context.Context, subscriberID uint) ([]domain.MonitorEntry, error) {
	return r.monitors.ListActiveBySubscriber(ctx, subscriberID)
}

func (r *MonitorRegistry) AllActive(ctx context.Context) ([]domain.MonitorEntry, error) {
	return r.monitors.ListAllActive(ctx)
}

func (r *MonitorRegistry) MarkNotified(ctx context.Context, monitorID uint, price decimal.Decimal) error {
	return r.monitors.MarkNotified(ctx, monitorID, price)
}
