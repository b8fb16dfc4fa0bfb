package forms

import "strings"

// ManualObservationForm records an observation that was requested outside
// this system.
type ManualObservationForm struct {
	TargetID      uint   `form:"target_id" json:"target_id" binding:"required"`
	Facility      string `form:"facility" json:"facility" binding:"required"`
	ObservationID string `form:"observation_id" json:"observation_id" binding:"required"`
}

// Validate checks the facility against the currently registered names. The
// observation id is stored without surrounding whitespace.
func (f *ManualObservationForm) Validate(facilities []string) error {
	f.ObservationID = strings.TrimSpace(f.ObservationID)

	ve := NewValidationError()
	if f.TargetID == 0 {
		ve.Add("target_id", "This field is required.")
	}
	if f.ObservationID == "" {
		ve.Add("observation_id", "This field is required.")
	}
	if !contains(facilities, f.Facility) {
		ve.Add("facility", "Select a valid choice. "+f.Facility+" is not one of the available choices.")
	}
	return ve.Err()
}

// ManualObservationFields describes the manual form with the given facility
// choices.
func ManualObservationFields(facilities []string) []Field {
	return []Field{
		{Name: "target_id", Label: "Target", Type: "integer", Required: true, Hidden: true},
		{Name: "facility", Label: "Facility", Type: "choice", Required: true, Choices: facilities},
		{Name: "observation_id", Label: "Observation ID", Type: "string", Required: true},
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
