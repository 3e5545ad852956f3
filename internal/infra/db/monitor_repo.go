package db

import (
	"context"
	"errors"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MonitorRepository struct {
	db *gorm.DB
}

func NewMonitorRepository(db *gorm.DB) *MonitorRepository {
	return &MonitorRepository{db: db}
}

func (r *MonitorRepository) GetByPair(ctx context.Context, subscriberID, productID uint) (*domain.Monitor, error) {
	var model monitorModel
	if err := r.db.WithContext(ctx).Where("subscriber_id = ? AND product_id = ?", subscriberID, productID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	monitor := mapMonitorToDomain(model)
	return &monitor, nil
}

func (r *MonitorRepository) Create(ctx context.Context, monitor *domain.Monitor) error {
	model := mapMonitorToModel(*monitor)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return err
	}
	monitor.ID = model.ID
	monitor.CreatedAt = model.CreatedAt
	monitor.UpdatedAt = model.UpdatedAt
	return nil
}

// Reactivate reuses an existing row. last_notified_price is kept.
func (r *MonitorRepository) Reactivate(ctx context.Context, monitorID uint, targetPrice *decimal.Decimal, notifyAnyDrop bool) error {
	result := r.db.WithContext(ctx).Model(&monitorModel{}).Where("id = ?", monitorID).Updates(map[string]interface{}{
		"active":          true,
		"target_price":    nullDecimal(targetPrice),
		"notify_any_drop": notifyAnyDrop,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MonitorRepository) Deactivate(ctx context.Context, subscriberID, productID uint) error {
	result := r.db.WithContext(ctx).Model(&monitorModel{}).
		Where("subscriber_id = ? AND product_id = ?", subscriberID, productID).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MonitorRepository) CountActive(ctx context.Context, subscriberID uint) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&monitorModel{}).
		Where("subscriber_id = ? AND active = ?", subscriberID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *MonitorRepository) ListActiveBySubscriber(ctx context.Context, subscriberID uint) ([]domain.MonitorEntry, error) {
	var models []monitorModel
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Subscriber").
		Where("subscriber_id = ? AND active = ?", subscriberID, true).
		Order("id").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return mapMonitorEntries(models), nil
}

func (r *MonitorRepository) ListAllActive(ctx context.Context) ([]domain.MonitorEntry, error) {
	var models []monitorModel
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Subscriber").
		Where("active = ?", true).
		Order("product_id, id").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return mapMonitorEntries(models), nil
}

func (r *MonitorRepository) MarkNotified(ctx context.Context, monitorID uint, price decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&monitorModel{}).Where("id = ?", monitorID).Update("last_notified_price", decimal.NewNullDecimal(price))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// mapMonitorEntries drops rows whose subscriber has been soft-deleted; the
// Subscriber preload leaves those nil.
func mapMonitorEntries(models []monitorModel) []domain.MonitorEntry {
	entries := make([]domain.MonitorEntry, 0, len(models))
	for _, model := range models {
		if model.Product == nil || model.Subscriber == nil {
			continue
		}
		entries = append(entries, domain.MonitorEntry{
			Monitor:    mapMonitorToDomain(model),
			Product:    *mapProductToDomain(*model.Product),
			Subscriber: *mapSubscriberToDomain(*model.Subscriber),
		})
	}
	return entries
}

func mapMonitorToDomain(model monitorModel) domain.Monitor {
	return domain.Monitor{
		ID:                model.ID,
		SubscriberID:      model.SubscriberID,
		ProductID:         model.ProductID,
		TargetPrice:       decimalPtr(model.TargetPrice),
		NotifyAnyDrop:     model.NotifyAnyDrop,
		LastNotifiedPrice: decimalPtr(model.LastNotifiedPrice),
		Active:            model.Active,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

func mapMonitorToModel(monitor domain.Monitor) monitorModel {
	return monitorModel{
		ID:                monitor.ID,
		SubscriberID:      monitor.SubscriberID,
		ProductID:         monitor.ProductID,
		TargetPrice:       nullDecimal(monitor.TargetPrice),
		NotifyAnyDrop:     monitor.NotifyAnyDrop,
		LastNotifiedPrice: nullDecimal(monitor.LastNotifiedPrice),
		Active:            monitor.Active,
		CreatedAt:         monitor.CreatedAt,
		UpdatedAt:         monitor.UpdatedAt,
	}
}
