package service

import (
	"context"
	"fmt"
	"io"
	"log"

	"tomobs/internal/export"
	"tomobs/internal/facility"
	"tomobs/internal/forms"
	"tomobs/internal/metrics"
	"tomobs/internal/models"
	"tomobs/internal/repository"

	"gorm.io/datatypes"
)

const ObservationPageSize = 100

// ObservationItem is a record together with its link at the facility.
type ObservationItem struct {
	models.ObservationRecord
	URL string `json:"url"`
}

type ObservationPage struct {
	Page
	Observations []ObservationItem `json:"observations"`
}

// Submission is the initial state of a facility submission form.
type Submission struct {
	Facility string         `json:"facility"`
	TargetID uint           `json:"target_id"`
	Target   *models.Target `json:"target"`
	Fields   []forms.Field  `json:"fields"`
}

type ObservationService interface {
	NewSubmission(ctx context.Context, facilityName, rawTargetID string) (*Submission, error)
	NewForm(facilityName string) (facility.Form, error)
	Submit(ctx context.Context, facilityName string, targetID uint, form facility.Form) ([]ObservationItem, error)
	NewManualSubmission(ctx context.Context, rawTargetID string) (*Submission, error)
	CreateManual(ctx context.Context, form *forms.ManualObservationForm) (*ObservationItem, error)
	List(ctx context.Context, filter repository.ObservationFilter, page int) (*ObservationPage, error)
	Get(ctx context.Context, id uint) (*ObservationItem, error)
	ListByTarget(ctx context.Context, targetID uint) ([]ObservationItem, error)
	Export(ctx context.Context, filter repository.ObservationFilter, format export.Format, w io.Writer) error
	Facilities() []string
}

type observationService struct {
	registry   *facility.Registry
	repo       repository.ObservationRepository
	targetRepo repository.TargetRepository
}

func NewObservationService(
	registry *facility.Registry,
	repo repository.ObservationRepository,
	targetRepo repository.TargetRepository,
) ObservationService {
	return &observationService{
		registry:   registry,
		repo:       repo,
		targetRepo: targetRepo,
	}
}

// NewSubmission checks the target id before the facility, so a request
// without one is always a client error.
func (s *observationService) NewSubmission(ctx context.Context, facilityName, rawTargetID string) (*Submission, error) {
	targetID, err := ParseTargetID(rawTargetID)
	if err != nil {
		return nil, err
	}
	f, err := s.registry.Get(facilityName)
	if err != nil {
		return nil, err
	}
	target, err := s.getTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	return &Submission{
		Facility: f.Name(),
		TargetID: target.ID,
		Target:   target,
		Fields:   f.NewForm().Fields(),
	}, nil
}

func (s *observationService) NewForm(facilityName string) (facility.Form, error) {
	f, err := s.registry.Get(facilityName)
	if err != nil {
		return nil, err
	}
	return f.NewForm(), nil
}

// Submit sends the form to the facility and records one observation per id
// the facility returns, in the order returned. Either every record is stored
// or none is.
func (s *observationService) Submit(ctx context.Context, facilityName string, targetID uint, form facility.Form) ([]ObservationItem, error) {
	if targetID == 0 {
		return nil, ErrTargetRequired
	}
	f, err := s.registry.Get(facilityName)
	if err != nil {
		return nil, err
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}

	target, err := s.getTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	payload, err := form.ObservationPayload(target)
	if err != nil {
		return nil, fmt.Errorf("failed to build observation payload: %w", err)
	}
	params, err := form.SerializeParameters()
	if err != nil {
		return nil, err
	}

	ids, err := f.SubmitObservation(ctx, payload)
	if err == nil && len(ids) == 0 {
		err = fmt.Errorf("facility returned no observation ids")
	}
	if err != nil {
		metrics.IncSubmission(f.Name(), metrics.ResultError)
		return nil, fmt.Errorf("%w: %s: %v", ErrSubmission, f.Name(), err)
	}
	metrics.IncSubmission(f.Name(), metrics.ResultSuccess)

	records := make([]*models.ObservationRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, &models.ObservationRecord{
			TargetID:      target.ID,
			Facility:      f.Name(),
			Parameters:    params,
			ObservationID: id,
		})
	}

	if err := s.repo.CreateBatch(ctx, records); err != nil {
		log.Printf("Failed to record observations %v submitted to %s: %v", ids, f.Name(), err)
		return nil, &PersistenceError{Facility: f.Name(), ObservationIDs: ids, Err: err}
	}
	metrics.AddRecordsCreated(f.Name(), metrics.SourceFacility, len(records))
	log.Printf("Recorded %d observation(s) at %s for target %s", len(records), f.Name(), target.Identifier)

	items := make([]ObservationItem, 0, len(records))
	for _, record := range records {
		record.Target = target
		items = append(items, ObservationItem{ObservationRecord: *record, URL: f.ObservationURL(record.ObservationID)})
	}
	return items, nil
}

func (s *observationService) NewManualSubmission(ctx context.Context, rawTargetID string) (*Submission, error) {
	target, err := s.lookupTarget(ctx, rawTargetID)
	if err != nil {
		return nil, err
	}
	return &Submission{
		TargetID: target.ID,
		Target:   target,
		Fields:   forms.ManualObservationFields(s.registry.Names()),
	}, nil
}

// CreateManual records an observation requested outside this system. The
// facility is not contacted.
func (s *observationService) CreateManual(ctx context.Context, form *forms.ManualObservationForm) (*ObservationItem, error) {
	if err := form.Validate(s.registry.Names()); err != nil {
		return nil, err
	}

	target, err := s.targetRepo.GetByID(ctx, form.TargetID)
	if err != nil {
		return nil, notFound(err, ErrTargetNotFound)
	}

	record := &models.ObservationRecord{
		TargetID:      target.ID,
		Facility:      form.Facility,
		Parameters:    datatypes.JSON("{}"),
		ObservationID: form.ObservationID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create observation record: %w", err)
	}
	metrics.AddRecordsCreated(form.Facility, metrics.SourceManual, 1)

	record.Target = target
	return &ObservationItem{ObservationRecord: *record, URL: s.observationURL(*record)}, nil
}

func (s *observationService) List(ctx context.Context, filter repository.ObservationFilter, page int) (*ObservationPage, error) {
	page = normalizePage(page)
	records, count, err := s.repo.List(ctx, filter, (page-1)*ObservationPageSize, ObservationPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}

	return &ObservationPage{
		Page:         newPage(page, ObservationPageSize, count),
		Observations: s.items(records),
	}, nil
}

func (s *observationService) Get(ctx context.Context, id uint) (*ObservationItem, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrRecordNotFound)
	}
	return &ObservationItem{ObservationRecord: *record, URL: s.observationURL(*record)}, nil
}

func (s *observationService) ListByTarget(ctx context.Context, targetID uint) ([]ObservationItem, error) {
	records, err := s.repo.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return s.items(records), nil
}

func (s *observationService) Export(ctx context.Context, filter repository.ObservationFilter, format export.Format, w io.Writer) error {
	records, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list observations: %w", err)
	}
	return export.Observations(w, format, records, s.observationURL)
}

func (s *observationService) Facilities() []string {
	return s.registry.Names()
}

func (s *observationService) lookupTarget(ctx context.Context, rawTargetID string) (*models.Target, error) {
	id, err := ParseTargetID(rawTargetID)
	if err != nil {
		return nil, err
	}
	return s.getTarget(ctx, id)
}

func (s *observationService) getTarget(ctx context.Context, id uint) (*models.Target, error) {
	target, err := s.targetRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrTargetNotFound)
	}
	return target, nil
}

// observationURL is empty for records of facilities that are no longer
// registered.
func (s *observationService) observationURL(record models.ObservationRecord) string {
	f, err := s.registry.Get(record.Facility)
	if err != nil {
		return ""
	}
	return f.ObservationURL(record.ObservationID)
}

func (s *observationService) items(records []models.ObservationRecord) []ObservationItem {
	items := make([]ObservationItem, 0, len(records))
	for _, record := range records {
		items = append(items, ObservationItem{ObservationRecord: record, URL: s.observationURL(record)})
	}
	return items
}
