package models

import "time"

const (
	ParameterTypeString       = "String"
	ParameterTypeSecureString = "SecureString"
)

// Parameter is one named credential or setting. SecureString values are stored sealed.
type Parameter struct {
	Name        string    `gorm:"primaryKey" json:"name"`
	Value       string    `gorm:"type:text;not null" json:"-"`
	Type        string    `gorm:"not null;default:'SecureString'" json:"type"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}
