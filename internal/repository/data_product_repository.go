package repository

import (
	"context"

	"tomobs/internal/models"

	"gorm.io/gorm"
)

// DataProductFilter narrows data product listings by the owning target's
// identifier and by the facility of the linked observation record.
type DataProductFilter struct {
	TargetIdentifier string
	Facility         string
}

func (f DataProductFilter) apply(db *gorm.DB) *gorm.DB {
	if f.TargetIdentifier != "" {
		db = db.Joins("JOIN targets ON targets.id = data_products.target_id").
			Where("targets.identifier = ?", f.TargetIdentifier)
	}
	if f.Facility != "" {
		db = db.Joins("JOIN observation_records ON observation_records.id = data_products.observation_record_id").
			Where("observation_records.facility = ?", f.Facility)
	}
	return db
}

type DataProductRepository interface {
	Create(ctx context.Context, product *models.DataProduct) error
	GetByID(ctx context.Context, id uint) (*models.DataProduct, error)
	List(ctx context.Context, filter DataProductFilter, offset, limit int) ([]models.DataProduct, int64, error)
	ListByTarget(ctx context.Context, targetID uint) ([]models.DataProduct, error)
	ExistingIDs(ctx context.Context, ids []uint) ([]uint, error)
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

type dataProductRepository struct {
	db *gorm.DB
}

func NewDataProductRepository(db *gorm.DB) DataProductRepository {
	return &dataProductRepository{db: db}
}

func (r *dataProductRepository) Create(ctx context.Context, product *models.DataProduct) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *dataProductRepository) GetByID(ctx context.Context, id uint) (*models.DataProduct, error) {
	var product models.DataProduct
	err := r.db.WithContext(ctx).
		Preload("Target").
		Preload("ObservationRecord").
		Preload("Groups").
		First(&product, id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *dataProductRepository) List(ctx context.Context, filter DataProductFilter, offset, limit int) ([]models.DataProduct, int64, error) {
	var count int64
	err := filter.apply(r.db.WithContext(ctx).Model(&models.DataProduct{})).
		Count(&count).
		Error
	if err != nil {
		return nil, 0, err
	}

	var products []models.DataProduct
	err = filter.apply(r.db.WithContext(ctx)).
		Preload("Target").
		Preload("ObservationRecord").
		Preload("Groups").
		Order("data_products.created_at DESC, data_products.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&products).
		Error
	return products, count, err
}

func (r *dataProductRepository) ListByTarget(ctx context.Context, targetID uint) ([]models.DataProduct, error) {
	var products []models.DataProduct
	err := r.db.WithContext(ctx).
		Preload("Groups").
		Where("target_id = ?", targetID).
		Order("created_at DESC, id DESC").
		Find(&products).
		Error
	return products, err
}

func (r *dataProductRepository) ExistingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	var found []uint
	if len(ids) == 0 {
		return found, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.DataProduct{}).
		Where("id IN ?", ids).
		Pluck("id", &found).
		Error
	return found, err
}

// Delete removes the product and its group memberships.
func (r *dataProductRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product := models.DataProduct{ID: id}
		if err := tx.Model(&product).Association("Groups").Clear(); err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
}

func (r *dataProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DataProduct{}).
		Count(&count).
		Error
	return count, err
}
