package models

import "gorm.io/gorm"

// ContactSubjects is the closed set of subjects accepted by the contact form.
var ContactSubjects = map[string]string{
	"general":     "General Inquiry",
	"support":     "Technical Support",
	"billing":     "Billing & Payments",
	"provider":    "Become a Service Provider",
	"partnership": "Business Partnership",
	"feedback":    "Feedback & Suggestions",
	"complaint":   "Complaint",
	"other":       "Other",
}

type ContactMessage struct {
	gorm.Model
	Name     string `gorm:"size:100;not null" json:"name"`
	Email    string `gorm:"size:255;not null" json:"email"`
	Phone    string `gorm:"size:15" json:"phone,omitempty"`
	Subject  string `gorm:"size:20;not null" json:"subject"`
	Message  string `gorm:"type:text;not null" json:"message"`
	Resolved bool   `gorm:"column:is_resolved;default:false" json:"is_resolved"`
}
