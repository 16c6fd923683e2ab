package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

type User struct {
	gorm.Model
	FullName     string `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email        string `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role         string `gorm:"column:role;size:20;not null;default:customer" json:"role"`
	Phone        string `gorm:"column:phone;size:20;not null" json:"phone"`
	Location     string `gorm:"column:location;size:255" json:"location"`
	IsVerified   bool   `gorm:"column:is_verified;default:false" json:"is_verified"`
	Active       bool   `gorm:"column:active;default:true" json:"active"`

	// Provider-only fields, empty for customers and admins.
	BusinessName string `gorm:"column:business_name;size:255" json:"business_name,omitempty"`
	Experience   string `gorm:"column:experience;size:50" json:"experience,omitempty"`

	ServiceCategories []ServiceCategory `gorm:"many2many:user_service_categories" json:"service_categories,omitempty"`
}

func (u *User) IsProvider() bool { return u.Role == RoleProvider }
func (u *User) IsCustomer() bool { return u.Role == RoleCustomer }
func (u *User) IsAdmin() bool    { return u.Role == RoleAdmin }

type PasswordResetToken struct {
	gorm.Model
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Token     string    `gorm:"size:36;not null;uniqueIndex" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Used      bool      `gorm:"default:false" json:"used"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (t *PasswordResetToken) Valid() bool {
	return !t.Used && time.Now().Before(t.ExpiresAt)
}
