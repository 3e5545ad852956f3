package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
)

type SubscriberUsecase struct {
	subscribers domain.SubscriberRepository
	monitors    domain.MonitorRepository
	tiers       domain.TierTable
	now         func() time.Time
}

func NewSubscriberUsecase(subscribers domain.SubscriberRepository, monitors domain.MonitorRepository, tiers domain.TierTable) *SubscriberUsecase {
	return &SubscriberUsecase{subscribers: subscribers, monitors: monitors, tiers: tiers, now: time.Now}
}

func (u *SubscriberUsecase) StartOrGetSubscriber(ctx context.Context, telegramUserID int64, username string) (*domain.Subscriber, error) {
	subscriber, err := u.subscribers.GetByTelegramID(ctx, telegramUserID)
	if err == nil {
		return subscriber, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	newSubscriber := &domain.Subscriber{
		TelegramUserID: telegramUserID,
		Username:       username,
		Tier:           domain.TierFree,
	}
	if err := u.subscribers.Create(ctx, newSubscriber); err != nil {
		// A concurrent first message may have inserted the row already.
		if existing, getErr := u.subscribers.GetByTelegramID(ctx, telegramUserID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return newSubscriber, nil
}

// ActivateTier grants a paid tier for the given number of days starting now.
func (u *SubscriberUsecase) ActivateTier(ctx context.Context, telegramUserID int64, tier domain.Tier, days int) (*domain.Subscriber, error) {
	if tier == domain.TierFree || days <= 0 {
		return nil, fmt.Errorf("cannot activate %s for %d days", tier, days)
	}

	subscriber, err := u.subscribers.GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrSubscriberNotRegistered
		}
		return nil, err
	}

	expiresAt := u.now().UTC().AddDate(0, 0, days)
	if err := u.subscribers.SetTier(ctx, subscriber.ID, tier, expiresAt); err != nil {
		return nil, fmt.Errorf("set tier for subscriber %d: %w", subscriber.ID, err)
	}
	subscriber.Tier = tier
	subscriber.TierExpiresAt = &expiresAt
	return subscriber, nil
}

type SubscriberProfile struct {
	Subscriber     domain.Subscriber
	EffectiveTier  domain.Tier
	Limits         domain.TierLimits
	ChecksLeft     int
	ActiveMonitors int
}

func (u *SubscriberUsecase) Profile(ctx context.Context, telegramUserID int64) (SubscriberProfile, error) {
	subscriber, err := u.subscribers.GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return SubscriberProfile{}, ErrSubscriberNotRegistered
		}
		return SubscriberProfile{}, err
	}

	active, err := u.monitors.CountActive(ctx, subscriber.ID)
	if err != nil {
		return SubscriberProfile{}, fmt.Errorf("count monitors: %w", err)
	}

	now := u.now().UTC()
	tier := subscriber.EffectiveTier(now)
	limits := u.tiers.Limits(tier)

	used := subscriber.ChecksToday
	if needsReset(subscriber.ChecksResetAt, now) {
		used = 0
	}

	return SubscriberProfile{
		Subscriber:     *subscriber,
		EffectiveTier:  tier,
		Limits:         limits,
		ChecksLeft:     max(limits.ChecksPerDay-used, 0),
		ActiveMonitors: active,
	}, nil
}
