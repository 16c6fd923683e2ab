package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	BookingPending    = "pending"
	BookingConfirmed  = "confirmed"
	BookingInProgress = "in_progress"
	BookingCompleted  = "completed"
	BookingCancelled  = "cancelled"
)

// bookingTransitions lists the reachable statuses from each status.
// Completed and cancelled are terminal; nothing returns to pending.
// A confirmed booking may be marked completed without passing through
// in_progress (providers often report start and finish in one step).
var bookingTransitions = map[string][]string{
	BookingPending:    {BookingConfirmed, BookingCancelled},
	BookingConfirmed:  {BookingInProgress, BookingCompleted, BookingCancelled},
	BookingInProgress: {BookingCompleted, BookingCancelled},
	BookingCompleted:  {},
	BookingCancelled:  {},
}

// CancellationReasons is the closed set accepted by the cancel operation.
var CancellationReasons = map[string]string{
	"change_of_plans":          "Change of plans",
	"found_another_provider":   "Found another service provider",
	"service_no_longer_needed": "Service no longer needed",
	"scheduling_conflict":      "Scheduling conflict",
	"price_concern":            "Price concern",
	"personal_reasons":         "Personal reasons",
	"other":                    "Other",
}

type Booking struct {
	gorm.Model
	CustomerID uint  `gorm:"column:customer_id;not null;index" json:"customer_id"`
	ProviderID uint  `gorm:"column:provider_id;not null;index" json:"provider_id"`
	ServiceID  *uint `gorm:"column:service_id" json:"service_id,omitempty"`

	// Snapshot of the listing at booking time; survives listing deletion.
	ServiceName        string `gorm:"column:service_name;size:200;not null" json:"service_name"`
	ServiceDescription string `gorm:"column:service_description;type:text" json:"service_description"`

	TotalPrice          float64   `gorm:"column:total_price;not null" json:"total_price"`
	Status              string    `gorm:"size:20;not null;default:pending" json:"status"`
	ServiceDate         time.Time `gorm:"column:service_date;not null" json:"service_date"`
	ServiceTime         string    `gorm:"column:service_time;size:10;not null" json:"service_time"`
	CustomerAddress     string    `gorm:"column:customer_address;type:text;not null" json:"customer_address"`
	SpecialInstructions string    `gorm:"column:special_instructions;type:text" json:"special_instructions,omitempty"`
	CancellationReason  string    `gorm:"column:cancellation_reason;size:50" json:"cancellation_reason,omitempty"`

	Customer *User    `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Provider *User    `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	Service  *Service `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
}

// CanTransition reports whether the booking may move to the given status.
func (b *Booking) CanTransition(to string) bool {
	for _, next := range bookingTransitions[b.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the booking is in a final state.
func (b *Booking) Terminal() bool {
	return b.Status == BookingCompleted || b.Status == BookingCancelled
}
