package models

import "gorm.io/gorm"

const (
	RequestOpen       = "open"
	RequestInProgress = "in_progress"
	RequestAssigned   = "assigned"
	RequestCompleted  = "completed"
	RequestCancelled  = "cancelled"
)

// RequestStatuses is the closed set accepted by the status update operation.
var RequestStatuses = map[string]bool{
	RequestOpen:       true,
	RequestInProgress: true,
	RequestAssigned:   true,
	RequestCompleted:  true,
	RequestCancelled:  true,
}

var RequestUrgencies = map[string]string{
	"low":    "Low - Can wait a few days",
	"medium": "Medium - Need within 24 hours",
	"high":   "High - Urgent, need ASAP",
}

var RequestBudgets = map[string]string{
	"0-500":     "₹0 - ₹500",
	"500-1000":  "₹500 - ₹1,000",
	"1000-2000": "₹1,000 - ₹2,000",
	"2000-5000": "₹2,000 - ₹5,000",
	"5000+":     "₹5,000+",
}

type ServiceRequest struct {
	gorm.Model
	CustomerID   uint   `gorm:"column:customer_id;not null;index" json:"customer_id"`
	CategoryID   uint   `gorm:"column:category_id;not null;index" json:"category_id"`
	Title        string `gorm:"size:200;not null" json:"title"`
	Description  string `gorm:"type:text;not null" json:"description"`
	Location     string `gorm:"size:100;not null" json:"location"`
	Urgency      string `gorm:"size:20;default:medium" json:"urgency"`
	Budget       string `gorm:"size:20" json:"budget,omitempty"`
	ContactName  string `gorm:"column:contact_name;size:100" json:"contact_name"`
	ContactPhone string `gorm:"column:contact_phone;size:15" json:"contact_phone"`
	Status       string `gorm:"size:20;not null;default:open" json:"status"`

	AssignedProviderID *uint `gorm:"column:assigned_provider_id" json:"assigned_provider_id,omitempty"`

	Customer         *User             `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Category         *ServiceCategory  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	AssignedProvider *User             `gorm:"foreignKey:AssignedProviderID" json:"assigned_provider,omitempty"`
	Responses        []ServiceResponse `gorm:"foreignKey:ServiceRequestID;constraint:OnDelete:CASCADE" json:"responses,omitempty"`
}

// ServiceResponse is a provider's reply to a request. A provider may
// respond to the same request more than once.
type ServiceResponse struct {
	gorm.Model
	ServiceRequestID uint    `gorm:"column:service_request_id;not null;index" json:"service_request_id"`
	ProviderID       uint    `gorm:"column:provider_id;not null;index" json:"provider_id"`
	Message          string  `gorm:"type:text;not null" json:"message"`
	ProposedPrice    float64 `gorm:"column:proposed_price" json:"proposed_price,omitempty"`
	EstimatedTime    string  `gorm:"column:estimated_time;size:100" json:"estimated_time,omitempty"`

	Provider *User `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
}
