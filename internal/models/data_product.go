package models

import (
	"time"

	"gorm.io/datatypes"
)

// DataProductGroup is a user-named collection of data products. Deleting a
// group leaves its members in place.
type DataProductGroup struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"type:varchar(200);not null" json:"name"`
	Products  []DataProduct `gorm:"many2many:data_product_memberships;constraint:OnDelete:CASCADE" json:"products,omitempty"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"modified"`
}

// DataProduct is a file artifact attached to a target and, when it came from
// an automated observation, to that observation's record.
type DataProduct struct {
	ID                  uint               `gorm:"primaryKey" json:"id"`
	ProductID           *string            `gorm:"type:varchar(2000);uniqueIndex" json:"product_id"`
	TargetID            uint               `gorm:"not null;index" json:"target_id"`
	Target              *Target            `gorm:"constraint:OnDelete:CASCADE" json:"target,omitempty"`
	ObservationRecordID *uint              `gorm:"index" json:"observation_record_id"`
	ObservationRecord   *ObservationRecord `gorm:"constraint:OnDelete:SET NULL" json:"observation_record,omitempty"`
	Data                string             `gorm:"type:varchar(1000)" json:"data"`
	ExtraData           datatypes.JSON     `gorm:"type:jsonb" json:"extra_data"`
	Groups              []DataProductGroup `gorm:"many2many:data_product_memberships;constraint:OnDelete:CASCADE" json:"groups,omitempty"`
	Tag                 string             `gorm:"type:text" json:"tag"`
	CreatedAt           time.Time          `gorm:"autoCreateTime;index" json:"created"`
	UpdatedAt           time.Time          `gorm:"autoUpdateTime" json:"modified"`
}

func (p *DataProduct) String() string {
	return p.Data
}
