package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tomobs/internal/forms"
	"tomobs/internal/models"
	"tomobs/internal/repository"

	"gorm.io/gorm"
)

// TargetDetail is a target with everything recorded against it.
type TargetDetail struct {
	models.Target
	Observations []ObservationItem    `json:"observations"`
	DataProducts []models.DataProduct `json:"data_products"`
}

type TargetService interface {
	Create(ctx context.Context, form *forms.TargetForm) (*models.Target, error)
	Get(ctx context.Context, id uint) (*TargetDetail, error)
}

type targetService struct {
	repo         repository.TargetRepository
	observations ObservationService
	products     DataProductService
}

func NewTargetService(repo repository.TargetRepository, observations ObservationService, products DataProductService) TargetService {
	return &targetService{
		repo:         repo,
		observations: observations,
		products:     products,
	}
}

func (s *targetService) Create(ctx context.Context, form *forms.TargetForm) (*models.Target, error) {
	identifier := strings.TrimSpace(form.Identifier)

	_, err := s.repo.GetByIdentifier(ctx, identifier)
	if err == nil {
		ve := forms.NewValidationError()
		ve.Add("identifier", "Target with this identifier already exists.")
		return nil, ve
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	target := &models.Target{
		Identifier: identifier,
		Name:       strings.TrimSpace(form.Name),
		RA:         form.RA,
		Dec:        form.Dec,
	}
	if err := s.repo.Create(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}
	return target, nil
}

func (s *targetService) Get(ctx context.Context, id uint) (*TargetDetail, error) {
	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrTargetNotFound)
	}

	observations, err := s.observations.ListByTarget(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	products, err := s.products.ListByTarget(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list data products: %w", err)
	}
	if products == nil {
		products = []models.DataProduct{}
	}

	return &TargetDetail{Target: *target, Observations: observations, DataProducts: products}, nil
}
