package models

import "gorm.io/gorm"

// Review is the single review a customer may leave for a completed
// booking. The unique index on BookingID enforces one-per-booking at the
// storage level, so two concurrent submissions cannot both commit.
type Review struct {
	gorm.Model
	BookingID  uint   `gorm:"column:booking_id;not null;uniqueIndex" json:"booking_id"`
	CustomerID uint   `gorm:"column:customer_id;not null;index" json:"customer_id"`
	ProviderID uint   `gorm:"column:provider_id;not null;index" json:"provider_id"`
	ServiceID  uint   `gorm:"column:service_id;not null;index" json:"service_id"`
	Rating     int    `gorm:"not null" json:"rating"`
	Comment    string `gorm:"type:text" json:"comment"`
	IsApproved bool   `gorm:"column:is_approved;default:true" json:"is_approved"`

	Booking  *Booking `gorm:"foreignKey:BookingID" json:"-"`
	Customer *User    `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Provider *User    `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	Service  *Service `gorm:"foreignKey:ServiceID" json:"-"`
}
