package repository

import (
	"context"

	"tomobs/internal/models"

	"gorm.io/gorm"
)

// ObservationFilter holds exact-match filters for observation listings. Empty
// fields are ignored.
type ObservationFilter struct {
	ObservationID string
	TargetID      *uint
	Facility      string
	Status        string
}

func (f ObservationFilter) apply(db *gorm.DB) *gorm.DB {
	if f.ObservationID != "" {
		db = db.Where("observation_id = ?", f.ObservationID)
	}
	if f.TargetID != nil {
		db = db.Where("target_id = ?", *f.TargetID)
	}
	if f.Facility != "" {
		db = db.Where("facility = ?", f.Facility)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	return db
}

type ObservationRepository interface {
	Create(ctx context.Context, record *models.ObservationRecord) error
	CreateBatch(ctx context.Context, records []*models.ObservationRecord) error
	GetByID(ctx context.Context, id uint) (*models.ObservationRecord, error)
	List(ctx context.Context, filter ObservationFilter, offset, limit int) ([]models.ObservationRecord, int64, error)
	ListAll(ctx context.Context, filter ObservationFilter) ([]models.ObservationRecord, error)
	ListByTarget(ctx context.Context, targetID uint) ([]models.ObservationRecord, error)
	ListOpen(ctx context.Context, facility string, terminal []string) ([]models.ObservationRecord, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	Count(ctx context.Context) (int64, error)
}

type observationRepository struct {
	db *gorm.DB
}

func NewObservationRepository(db *gorm.DB) ObservationRepository {
	return &observationRepository{db: db}
}

func (r *observationRepository) Create(ctx context.Context, record *models.ObservationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// CreateBatch inserts all records or none of them.
func (r *observationRepository) CreateBatch(ctx context.Context, records []*models.ObservationRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *observationRepository) GetByID(ctx context.Context, id uint) (*models.ObservationRecord, error) {
	var record models.ObservationRecord
	err := r.db.WithContext(ctx).
		Preload("Target").
		First(&record, id).
		Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *observationRepository) List(ctx context.Context, filter ObservationFilter, offset, limit int) ([]models.ObservationRecord, int64, error) {
	var count int64
	err := filter.apply(r.db.WithContext(ctx).Model(&models.ObservationRecord{})).
		Count(&count).
		Error
	if err != nil {
		return nil, 0, err
	}

	var records []models.ObservationRecord
	err = filter.apply(r.db.WithContext(ctx)).
		Preload("Target").
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).
		Error
	return records, count, err
}

func (r *observationRepository) ListAll(ctx context.Context, filter ObservationFilter) ([]models.ObservationRecord, error) {
	var records []models.ObservationRecord
	err := filter.apply(r.db.WithContext(ctx)).
		Preload("Target").
		Order("created_at DESC, id DESC").
		Find(&records).
		Error
	return records, err
}

func (r *observationRepository) ListByTarget(ctx context.Context, targetID uint) ([]models.ObservationRecord, error) {
	var records []models.ObservationRecord
	err := r.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("created_at DESC, id DESC").
		Find(&records).
		Error
	return records, err
}

// ListOpen returns the facility's records whose status is not one of the
// terminal states.
func (r *observationRepository) ListOpen(ctx context.Context, facility string, terminal []string) ([]models.ObservationRecord, error) {
	query := r.db.WithContext(ctx).Where("facility = ?", facility)
	if len(terminal) > 0 {
		query = query.Where("status NOT IN ?", terminal)
	}

	var records []models.ObservationRecord
	err := query.Order("created_at ASC, id ASC").Find(&records).Error
	return records, err
}

func (r *observationRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.ObservationRecord{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

func (r *observationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ObservationRecord{}).
		Count(&count).
		Error
	return count, err
}
