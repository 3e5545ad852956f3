package db

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) GetByTelegramID(ctx context.Context, telegramUserID int64) (*domain.Subscriber, error) {
	var model subscriberModel
	if err := r.db.WithContext(ctx).Where("telegram_user_id = ?", telegramUserID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return mapSubscriberToDomain(model), nil
}

func (r *SubscriberRepository) GetByID(ctx context.Context, subscriberID uint) (*domain.Subscriber, error) {
	var model subscriberModel
	if err := r.db.WithContext(ctx).First(&model, subscriberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return mapSubscriberToDomain(model), nil
}

func (r *SubscriberRepository) Create(ctx context.Context, subscriber *domain.Subscriber) error {
	model := mapSubscriberToModel(*subscriber)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	subscriber.ID = model.ID
	subscriber.Tier = domain.Tier(model.Tier)
	subscriber.CreatedAt = model.CreatedAt
	subscriber.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *SubscriberRepository) SetTier(ctx context.Context, subscriberID uint, tier domain.Tier, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&subscriberModel{}).Where("id = ?", subscriberID).Updates(map[string]interface{}{
		"tier":            string(tier),
		"tier_expires_at": expiresAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateUsage holds a row lock on the subscriber for the whole
// read-modify-write, so concurrent checks for one subscriber queue up here.
func (r *SubscriberRepository) UpdateUsage(ctx context.Context, subscriberID uint, apply func(subscriber *domain.Subscriber) bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model subscriberModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, subscriberID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		subscriber := mapSubscriberToDomain(model)
		if !apply(subscriber) {
			return nil
		}

		return tx.Model(&subscriberModel{}).Where("id = ?", subscriberID).Updates(map[string]interface{}{
			"checks_today":    subscriber.ChecksToday,
			"checks_reset_at": subscriber.ChecksResetAt,
		}).Error
	})
}

func mapSubscriberToDomain(model subscriberModel) *domain.Subscriber {
	var deleted *time.Time
	if model.DeletedAt.Valid {
		t := model.DeletedAt.Time
		deleted = &t
	}
	return &domain.Subscriber{
		ID:             model.ID,
		TelegramUserID: model.TelegramUserID,
		Username:       model.Username,
		Tier:           domain.Tier(model.Tier),
		TierExpiresAt:  model.TierExpiresAt,
		ChecksToday:    model.ChecksToday,
		ChecksResetAt:  model.ChecksResetAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
		DeletedAt:      deleted,
	}
}

func mapSubscriberToModel(subscriber domain.Subscriber) subscriberModel {
	tier := subscriber.Tier
	if tier == "" {
		tier = domain.TierFree
	}
	return subscriberModel{
		ID:             subscriber.ID,
		TelegramUserID: subscriber.TelegramUserID,
		Username:       subscriber.Username,
		Tier:           string(tier),
		TierExpiresAt:  subscriber.TierExpiresAt,
		ChecksToday:    subscriber.ChecksToday,
		ChecksResetAt:  subscriber.ChecksResetAt,
		CreatedAt:      subscriber.CreatedAt,
		UpdatedAt:      subscriber.UpdatedAt,
	}
}
