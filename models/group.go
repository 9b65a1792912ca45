package models

import "time"

// Group types. Individual and area submissions get the longer last-call
// period; working groups may require chair sign-off before posting.
const (
	GroupTypeWG         = "wg"
	GroupTypeArea       = "area"
	GroupTypeIndividual = "individ"
)

type Group struct {
	GroupID            int        `gorm:"primaryKey;column:group_id" json:"group_id"`
	Acronym            string     `gorm:"column:acronym;uniqueIndex" json:"acronym"`
	Name               string     `gorm:"column:name" json:"name"`
	Type               string     `gorm:"column:type" json:"type"`
	RequiresApproval   bool       `gorm:"column:requires_approval" json:"requires_approval"`
	RequiresADApproval bool       `gorm:"column:requires_ad_approval" json:"requires_ad_approval"`
	CreatedAt          time.Time  `gorm:"column:created_at" json:"created_at"`
	DeletedAt          *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (Group) TableName() string {
	return "groups"
}
