package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the member profile as far as messaging cares about it. Profile
// editing, photos and credentials live with the profile service.
type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string         `gorm:"not null;size:255;uniqueIndex" json:"-"`
	Phone       string         `gorm:"size:32" json:"-"`
	DisplayName string         `gorm:"size:100" json:"display_name"`
	Gender      string         `gorm:"size:20" json:"gender,omitempty"`
	IsActive    bool           `gorm:"not null;default:false" json:"is_active"`
	IsVerified  bool           `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
