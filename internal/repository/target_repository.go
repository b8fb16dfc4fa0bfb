package repository

import (
	"context"

	"tomobs/internal/models"

	"gorm.io/gorm"
)

type TargetRepository interface {
	Create(ctx context.Context, target *models.Target) error
	GetByID(ctx context.Context, id uint) (*models.Target, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.Target, error)
	Count(ctx context.Context) (int64, error)
}

type targetRepository struct {
	db *gorm.DB
}

func NewTargetRepository(db *gorm.DB) TargetRepository {
	return &targetRepository{db: db}
}

func (r *targetRepository) Create(ctx context.Context, target *models.Target) error {
	return r.db.WithContext(ctx).Create(target).Error
}

func (r *targetRepository) GetByID(ctx context.Context, id uint) (*models.Target, error) {
	var target models.Target
	if err := r.db.WithContext(ctx).First(&target, id).Error; err != nil {
		return nil, err
	}
	return &target, nil
}

func (r *targetRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Target, error) {
	var target models.Target
	err := r.db.WithContext(ctx).
		Where("identifier = ?", identifier).
		First(&target).
		Error
	if err != nil {
		return nil, err
	}
	return &target, nil
}

func (r *targetRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Target{}).
		Count(&count).
		Error
	return count, err
}
