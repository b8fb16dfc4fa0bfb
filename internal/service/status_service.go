package service

import (
	"context"
	"fmt"
	"io"
	"log"

	"tomobs/internal/facility"
	"tomobs/internal/metrics"
	"tomobs/internal/repository"
)

// StatusSummary counts the outcome of one status refresh.
type StatusSummary struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

func (s StatusSummary) String() string {
	return fmt.Sprintf("Checked %d observation(s): %d updated, %d failed", s.Checked, s.Updated, s.Failed)
}

type StatusService interface {
	UpdateStatuses(ctx context.Context, out io.Writer) (StatusSummary, error)
}

type statusService struct {
	registry *facility.Registry
	repo     repository.ObservationRepository
}

func NewStatusService(registry *facility.Registry, repo repository.ObservationRepository) StatusService {
	return &statusService{registry: registry, repo: repo}
}

// UpdateStatuses queries every registered facility for the status of its
// non-terminal observations and stores the ones that changed. A failing query
// is reported on out and does not stop the run.
func (s *statusService) UpdateStatuses(ctx context.Context, out io.Writer) (StatusSummary, error) {
	var summary StatusSummary

	for _, name := range s.registry.Names() {
		f, err := s.registry.Get(name)
		if err != nil {
			continue
		}

		records, err := s.repo.ListOpen(ctx, name, f.TerminalStates())
		if err != nil {
			return summary, fmt.Errorf("failed to list open observations for %s: %w", name, err)
		}

		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			summary.Checked++

			status, err := f.ObservationStatus(ctx, record.ObservationID)
			if err != nil {
				summary.Failed++
				metrics.IncStatusUpdate(metrics.ResultError)
				log.Printf("Failed to get status of %s observation %s: %v", name, record.ObservationID, err)
				fmt.Fprintf(out, "Failed to update %s observation %s: %v\n", name, record.ObservationID, err)
				continue
			}

			if status == record.Status {
				metrics.IncStatusUpdate(metrics.ResultUnchanged)
				continue
			}

			if err := s.repo.UpdateStatus(ctx, record.ID, status); err != nil {
				summary.Failed++
				metrics.IncStatusUpdate(metrics.ResultError)
				fmt.Fprintf(out, "Failed to save %s observation %s: %v\n", name, record.ObservationID, err)
				continue
			}

			summary.Updated++
			metrics.IncStatusUpdate(metrics.ResultUpdated)
			fmt.Fprintf(out, "Updated %s observation %s: %q -> %q\n", name, record.ObservationID, record.Status, status)
		}
	}

	fmt.Fprintln(out, summary.String())
	return summary, nil
}
