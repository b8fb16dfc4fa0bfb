package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ObservationRecord is one observation request submitted to (or logged
// against) a facility.
type ObservationRecord struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	TargetID      uint           `gorm:"not null;index" json:"target_id"`
	Target        *Target        `gorm:"constraint:OnDelete:CASCADE" json:"target,omitempty"`
	Facility      string         `gorm:"type:varchar(50);not null;index" json:"facility"`
	Parameters    datatypes.JSON `gorm:"type:jsonb" json:"parameters"`
	ObservationID string         `gorm:"type:varchar(2000);not null;index" json:"observation_id"`
	Status        string         `gorm:"type:varchar(200);index" json:"status"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"created"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"modified"`
}

// ParametersAsMap decodes the stored submission parameters.
func (r *ObservationRecord) ParametersAsMap() (map[string]interface{}, error) {
	params := map[string]interface{}{}
	if len(r.Parameters) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(r.Parameters, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters on observation record %d: %w", r.ID, err)
	}
	return params, nil
}

func (r *ObservationRecord) String() string {
	if r.Target != nil {
		return fmt.Sprintf("%s @ %s", r.Target.Identifier, r.Facility)
	}
	return fmt.Sprintf("%d @ %s", r.TargetID, r.Facility)
}
