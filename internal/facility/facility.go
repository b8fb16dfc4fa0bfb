// Package facility defines the contract between the observation views and
// the telescope facilities they submit to, plus the registry that resolves a
// facility by name.
package facility

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"tomobs/internal/forms"
	"tomobs/internal/models"

	"gorm.io/datatypes"
)

// ErrNotFound is returned when no facility is registered under a name.
var ErrNotFound = errors.New("facility not found")

// Facility is an external observatory that accepts observation requests.
type Facility interface {
	Name() string
	// NewForm returns an empty submission form for this facility.
	NewForm() Form
	// SubmitObservation sends a payload built by this facility's form and
	// returns the ids the facility assigned, in order.
	SubmitObservation(ctx context.Context, payload any) ([]string, error)
	ObservationURL(observationID string) string
	ObservationStatus(ctx context.Context, observationID string) (string, error)
	// TerminalStates lists statuses after which an observation never changes.
	TerminalStates() []string
}

// Form collects and validates the parameters of one facility submission.
// Implementations carry gin binding tags and are bound by the handlers.
type Form interface {
	Fields() []forms.Field
	Validate() error
	ObservationPayload(target *models.Target) (any, error)
	SerializeParameters() (datatypes.JSON, error)
}

// Registry maps facility names to implementations.
type Registry struct {
	mu         sync.RWMutex
	facilities map[string]Facility
}

func NewRegistry(facilities ...Facility) *Registry {
	r := &Registry{facilities: make(map[string]Facility)}
	for _, f := range facilities {
		r.Register(f)
	}
	return r
}

// Register adds f under its own name, replacing any previous entry.
func (r *Registry) Register(f Facility) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facilities[f.Name()] = f
}

func (r *Registry) Get(name string) (Facility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.facilities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return f, nil
}

// Names returns the registered facility names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.facilities))
	for name := range r.facilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// IsTerminal reports whether status is one of f's terminal states.
func IsTerminal(f Facility, status string) bool {
	for _, s := range f.TerminalStates() {
		if s == status {
			return true
		}
	}
	return false
}
