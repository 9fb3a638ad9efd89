package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the read model of a customer account; accounts are managed elsewhere.
type User struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name             string    `gorm:"column:name;not null"`
	Nickname         *string   `gorm:"column:nickname"`
	Email            string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	Phone            *string   `gorm:"column:phone"`
	ProfileCompleted bool      `gorm:"column:profile_completed;not null;default:false"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// DisplayName prefers the nickname the customer chose for pickup handover.
func (u User) DisplayName() string {
	if u.Nickname != nil && strings.TrimSpace(*u.Nickname) != "" {
		return strings.TrimSpace(*u.Nickname)
	}
	return u.Name
}

func (u User) PhoneNumber() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}
