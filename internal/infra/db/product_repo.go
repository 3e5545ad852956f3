package db

import (
	"context"
	"errors"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetOrCreate inserts the (marketplace, external_id) pair if it is new and
// returns the stored row either way. Concurrent callers converge on one row
// through the unique index.
func (r *ProductRepository) GetOrCreate(ctx context.Context, marketplace domain.Marketplace, externalID, url string) (*domain.Product, error) {
	db := r.db.WithContext(ctx)
	insert := productModel{
		Marketplace: string(marketplace),
		ExternalID:  externalID,
		URL:         url,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "marketplace"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(&insert).Error
	if err != nil {
		return nil, err
	}

	var model productModel
	if err := db.Where("marketplace = ? AND external_id = ?", string(marketplace), externalID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return mapProductToDomain(model), nil
}

func (r *ProductRepository) GetByID(ctx context.Context, productID uint) (*domain.Product, error) {
	var model productModel
	if err := r.db.WithContext(ctx).First(&model, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return mapProductToDomain(model), nil
}

// ApplySnapshot refreshes the cached prices and fills in whatever listing
// metadata the snapshot carries; empty metadata fields keep their stored value.
func (r *ProductRepository) ApplySnapshot(ctx context.Context, productID uint, snapshot domain.ProductSnapshot) error {
	updates := map[string]interface{}{
		"current_price":  decimal.NewNullDecimal(snapshot.Price),
		"original_price": nullDecimal(snapshot.OriginalPrice),
	}
	if snapshot.Title != "" {
		updates["title"] = snapshot.Title
	}
	if snapshot.Brand != "" {
		updates["brand"] = snapshot.Brand
	}
	if snapshot.Category != "" {
		updates["category"] = snapshot.Category
	}
	if snapshot.SellerName != "" {
		updates["seller_name"] = snapshot.SellerName
	}
	if snapshot.Rating != nil {
		updates["rating"] = nullDecimal(snapshot.Rating)
	}
	if snapshot.ReviewCount > 0 {
		updates["review_count"] = snapshot.ReviewCount
	}

	result := r.db.WithContext(ctx).Model(&productModel{}).Where("id = ?", productID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func mapProductToDomain(model productModel) *domain.Product {
	return &domain.Product{
		ID:            model.ID,
		Marketplace:   domain.Marketplace(model.Marketplace),
		ExternalID:    model.ExternalID,
		URL:           model.URL,
		Title:         model.Title,
		Brand:         model.Brand,
		Category:      model.Category,
		SellerName:    model.SellerName,
		CurrentPrice:  decimalPtr(model.CurrentPrice),
		OriginalPrice: decimalPtr(model.OriginalPrice),
		Rating:        decimalPtr(model.Rating),
		ReviewCount:   model.ReviewCount,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}
