package models

import (
	"time"

	"gorm.io/gorm"
)

type ServiceCategory struct {
	gorm.Model
	Name        string `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Icon        string `gorm:"size:50;default:🔧" json:"icon"`
	Description string `gorm:"type:text" json:"description"`
}

type Service struct {
	gorm.Model
	ProviderID   uint    `gorm:"column:provider_id;not null;index" json:"provider_id"`
	CategoryID   uint    `gorm:"column:category_id;not null;index" json:"category_id"`
	Title        string  `gorm:"size:255;not null" json:"title"`
	Description  string  `gorm:"type:text;not null" json:"description"`
	PriceRange   string  `gorm:"column:price_range;size:100;not null" json:"price_range"`
	Location     string  `gorm:"size:255" json:"location"`
	Experience   string  `gorm:"size:50" json:"experience"`
	Availability string  `gorm:"size:50;default:Available" json:"availability"`
	Rating       float64 `gorm:"default:0" json:"rating"`
	ReviewsCount int     `gorm:"column:reviews_count;default:0" json:"reviews_count"`
	IsActive     bool    `gorm:"column:is_active;default:true" json:"is_active"`
	IsVerified   bool    `gorm:"column:is_verified;default:false" json:"is_verified"`

	Provider *User            `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	Category *ServiceCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Images   []ServiceImage   `gorm:"foreignKey:ServiceID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

// RecalculateRating refreshes the derived rating fields from the approved
// reviews of this service. Called after every review write.
func (s *Service) RecalculateRating(db *gorm.DB) error {
	var stats struct {
		Avg   float64
		Total int64
	}
	err := db.Model(&Review{}).
		Where("service_id = ? AND is_approved = ?", s.ID, true).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS total").
		Scan(&stats).Error
	if err != nil {
		return err
	}
	s.Rating = stats.Avg
	s.ReviewsCount = int(stats.Total)
	return db.Model(s).Updates(map[string]interface{}{
		"rating":        stats.Avg,
		"reviews_count": stats.Total,
	}).Error
}

type ServiceImage struct {
	gorm.Model
	ServiceID  uint      `gorm:"column:service_id;not null;index" json:"service_id"`
	Path       string    `gorm:"size:500;not null" json:"path"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}
