package db

import (
	"context"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"gorm.io/gorm"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Append(ctx context.Context, snapshot *domain.PriceSnapshot) error {
	model := snapshotModel{
		ProductID:       snapshot.ProductID,
		Price:           snapshot.Price,
		OriginalPrice:   nullDecimal(snapshot.OriginalPrice),
		DiscountPercent: nullDecimal(snapshot.DiscountPercent),
		RecordedAt:      snapshot.RecordedAt,
	}
	if err := r.db.WithContext(ctx).Omit("Product").Create(&model).Error; err != nil {
		return err
	}
	snapshot.ID = model.ID
	return nil
}

func (r *SnapshotRepository) ListSince(ctx context.Context, productID uint, since time.Time) ([]domain.PriceSnapshot, error) {
	var models []snapshotModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND recorded_at >= ?", productID, since).
		Order("recorded_at, id").
		Find(&models).Error; err != nil {
		return nil, err
	}

	snapshots := make([]domain.PriceSnapshot, 0, len(models))
	for _, model := range models {
		snapshots = append(snapshots, domain.PriceSnapshot{
			ID:              model.ID,
			ProductID:       model.ProductID,
			Price:           model.Price,
			OriginalPrice:   decimalPtr(model.OriginalPrice),
			DiscountPercent: decimalPtr(model.DiscountPercent),
			RecordedAt:      model.RecordedAt,
		})
	}
	return snapshots, nil
}
