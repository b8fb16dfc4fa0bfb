package repository

import (
	"context"
	"errors"

	"tomobs/internal/models"

	"gorm.io/gorm"
)

type GroupRepository interface {
	Create(ctx context.Context, group *models.DataProductGroup) error
	GetByID(ctx context.Context, id uint) (*models.DataProductGroup, error)
	Exists(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context) ([]models.DataProductGroup, error)
	AddProducts(ctx context.Context, groupID uint, productIDs []uint) error
	Delete(ctx context.Context, id uint) error
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *models.DataProductGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (*models.DataProductGroup, error) {
	var group models.DataProductGroup
	err := r.db.WithContext(ctx).
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Order("data_products.created_at DESC")
		}).
		First(&group, id).
		Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var group models.DataProductGroup
	err := r.db.WithContext(ctx).Select("id").First(&group, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *groupRepository) List(ctx context.Context) ([]models.DataProductGroup, error) {
	var groups []models.DataProductGroup
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&groups).
		Error
	return groups, err
}

// AddProducts links the products to the group. Existing memberships are kept.
func (r *groupRepository) AddProducts(ctx context.Context, groupID uint, productIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var products []models.DataProduct
		if err := tx.Where("id IN ?", productIDs).Find(&products).Error; err != nil {
			return err
		}
		group := models.DataProductGroup{ID: groupID}
		return tx.Model(&group).Association("Products").Append(products)
	})
}

// Delete removes the group and its memberships; member products survive.
func (r *groupRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group := models.DataProductGroup{ID: id}
		if err := tx.Model(&group).Association("Products").Clear(); err != nil {
			return err
		}
		result := tx.Delete(&group)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
