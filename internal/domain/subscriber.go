package domain

import (
	"fmt"
	"strings"
	"time"
)

type Tier string

const (
	TierFree    Tier = "FREE"
	TierPro     Tier = "PRO"
	TierPremium Tier = "PREMIUM"
)

func ParseTier(value string) (Tier, error) {
	switch Tier(strings.ToUpper(strings.TrimSpace(value))) {
	case TierFree:
		return TierFree, nil
	case TierPro:
		return TierPro, nil
	case TierPremium:
		return TierPremium, nil
	default:
		return "", fmt.Errorf("unknown tier %q", value)
	}
}

// EffectiveTier reports the tier that governs limits at now. A paid tier only
// counts while its expiry lies in the future; anything else is FREE.
func EffectiveTier(stored Tier, expiresAt *time.Time, now time.Time) Tier {
	if stored == "" || stored == TierFree {
		return TierFree
	}
	if expiresAt == nil || !expiresAt.After(now) {
		return TierFree
	}
	return stored
}

type TierLimits struct {
	ChecksPerDay int
	MonitorItems int
	HistoryDays  int
}

type TierTable map[Tier]TierLimits

// Limits falls back to the FREE row for tiers missing from the table.
func (t TierTable) Limits(tier Tier) TierLimits {
	if limits, ok := t[tier]; ok {
		return limits
	}
	return t[TierFree]
}

type Subscriber struct {
	ID             uint
	TelegramUserID int64
	Username       string
	Tier           Tier
	TierExpiresAt  *time.Time
	ChecksToday    int
	ChecksResetAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

func (s Subscriber) EffectiveTier(now time.Time) Tier {
	return EffectiveTier(s.Tier, s.TierExpiresAt, now)
}
