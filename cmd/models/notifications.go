package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	NotifyRegistration     = "registration"
	NotifyLogin            = "login"
	NotifyBookingConfirmed = "booking_confirmed"
	NotifyNewBooking       = "new_booking"
	NotifyBookingAccepted  = "booking_accepted"
	NotifyBookingRejected  = "booking_rejected"
	NotifyBookingCancelled = "booking_cancelled"
	NotifyStatusUpdate     = "status_update"
	NotifyServiceRequest   = "service_request"
	NotifyRequestPosted    = "request_posted"
	NotifyResponse         = "response"
	NotifyNewReview        = "new_review"
	NotifyServiceAdded     = "service_added"
)

type Notification struct {
	gorm.Model
	UserID  uint   `gorm:"column:user_id;not null;index" json:"user_id"`
	Title   string `gorm:"size:255;not null" json:"title"`
	Message string `gorm:"type:text;not null" json:"message"`
	Type    string `gorm:"column:notification_type;size:50" json:"notification_type"`
	IsRead  bool   `gorm:"column:is_read;default:false" json:"is_read"`

	RelatedBookingID *uint `gorm:"column:related_booking_id" json:"related_booking_id,omitempty"`

	User           *User    `gorm:"foreignKey:UserID" json:"-"`
	RelatedBooking *Booking `gorm:"foreignKey:RelatedBookingID" json:"related_booking,omitempty"`
}

const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// EmailOutbox is a durable record of an outbound email. Handlers enqueue
// rows in the same breath as their state mutation; the dispatcher delivers
// them independently, so a slow or broken SMTP server never fails a
// user-facing operation.
type EmailOutbox struct {
	gorm.Model
	Recipient string     `gorm:"size:255;not null" json:"recipient"`
	Subject   string     `gorm:"size:255;not null" json:"subject"`
	Body      string     `gorm:"type:text;not null" json:"body"`
	Status    string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	Attempts  int        `gorm:"default:0" json:"attempts"`
	LastError string     `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	SentAt    *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`
}
