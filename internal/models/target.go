package models

import "time"

// Target is the local view of an observable object. Targets are owned by the
// targets module; observations and data products only reference them.
type Target struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Identifier string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"identifier"`
	Name       string    `gorm:"type:varchar(100)" json:"name"`
	RA         float64   `json:"ra"`
	Dec        float64   `json:"dec"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"modified"`
}
