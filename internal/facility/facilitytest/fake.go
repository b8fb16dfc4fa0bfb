// Package facilitytest provides an in-memory facility for tests.
package facilitytest

import (
	"context"
	"errors"
	"sync"

	"tomobs/internal/facility"
	"tomobs/internal/forms"
	"tomobs/internal/models"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

// Facility records submissions and answers status queries from a map.
type Facility struct {
	FacilityName string
	// IDs are returned by every successful submission.
	IDs       []string
	SubmitErr error
	Statuses  map[string]string
	StatusErr map[string]error
	Terminal  []string

	mu          sync.Mutex
	Submissions []any
	StatusCalls []string
}

var _ facility.Facility = (*Facility)(nil)

func New(name string, ids ...string) *Facility {
	return &Facility{
		FacilityName: name,
		IDs:          ids,
		Statuses:     map[string]string{},
		StatusErr:    map[string]error{},
		Terminal:     []string{"COMPLETED", "CANCELED"},
	}
}

func (f *Facility) Name() string { return f.FacilityName }

func (f *Facility) NewForm() facility.Form { return &Form{} }

func (f *Facility) SubmitObservation(ctx context.Context, payload any) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Submissions = append(f.Submissions, payload)
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	if len(f.IDs) == 0 {
		return nil, errors.New("no ids returned")
	}
	return append([]string(nil), f.IDs...), nil
}

func (f *Facility) ObservationURL(observationID string) string {
	return "https://" + f.FacilityName + ".example/obs/" + observationID
}

func (f *Facility) ObservationStatus(ctx context.Context, observationID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusCalls = append(f.StatusCalls, observationID)
	if err := f.StatusErr[observationID]; err != nil {
		return "", err
	}
	return f.Statuses[observationID], nil
}

func (f *Facility) TerminalStates() []string { return f.Terminal }

// Form is a one-field submission form.
type Form struct {
	Exposure int `form:"exposure" json:"exposure" binding:"required,min=1"`
}

func (f *Form) Fields() []forms.Field {
	return []forms.Field{{Name: "exposure", Label: "Exposure", Type: "integer", Required: true}}
}

func (f *Form) Validate() error { return nil }

func (f *Form) ObservationPayload(target *models.Target) (any, error) {
	return map[string]any{"target": target.Name, "exposure": f.Exposure}, nil
}

func (f *Form) SerializeParameters() (datatypes.JSON, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
