package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/Sachin80-coder/fixfinder-server/cmd/models"
	"github.com/Sachin80-coder/fixfinder-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes sets up the public review listing route.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/services/{id:[0-9]+}/reviews", h.GetServiceReviews).Methods("GET")
}

// RegisterProtectedRoutes sets up the review submission route.
func (h *Handler) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/bookings/{id:[0-9]+}/review", h.CreateReview).Methods("POST")
}

// CreateReview records the customer's review of a completed booking and
// refreshes the service's rating summary.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bookingID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid booking ID", http.StatusBadRequest)
		return
	}

	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var booking models.Booking
	if err := h.db.First(&booking, bookingID).Error; err != nil {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}
	if booking.CustomerID != currentUser.ID {
		http.Error(w, "You can only review your own bookings", http.StatusForbidden)
		return
	}
	if booking.Status != models.BookingCompleted {
		http.Error(w, "You can only review completed bookings", http.StatusConflict)
		return
	}
	if booking.ServiceID == nil {
		http.Error(w, "The service for this booking no longer exists", http.StatusConflict)
		return
	}

	var existing models.Review
	if result := h.db.Where("booking_id = ?", booking.ID).First(&existing); !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		if result.Error != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		http.Error(w, "You have already reviewed this booking", http.StatusConflict)
		return
	}

	var reviewRequest struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reviewRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if reviewRequest.Rating < 1 || reviewRequest.Rating > 5 {
		http.Error(w, "Rating must be between 1 and 5", http.StatusBadRequest)
		return
	}

	review := models.Review{
		BookingID:  booking.ID,
		CustomerID: booking.CustomerID,
		ProviderID: booking.ProviderID,
		ServiceID:  *booking.ServiceID,
		Rating:     reviewRequest.Rating,
		Comment:    reviewRequest.Comment,
		IsApproved: true,
	}
	if err := h.db.Create(&review).Error; err != nil {
		// The unique index on booking_id closes the race two concurrent
		// submissions would otherwise win together.
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key") {
			http.Error(w, "You have already reviewed this booking", http.StatusConflict)
			return
		}
		http.Error(w, "Error creating review", http.StatusInternalServerError)
		return
	}

	var service models.Service
	if err := h.db.First(&service, *booking.ServiceID).Error; err == nil {
		if err := service.RecalculateRating(h.db); err != nil {
			log.Printf("Error recalculating rating for service %d: %v", service.ID, err)
		}
	}

	notification := models.Notification{
		UserID:           booking.ProviderID,
		Title:            "New Review Received",
		Message:          fmt.Sprintf("%s left a %d-star review for '%s'.", currentUser.FullName, review.Rating, booking.ServiceName),
		Type:             models.NotifyNewReview,
		RelatedBookingID: &booking.ID,
	}
	if err := h.db.Create(&notification).Error; err != nil {
		log.Printf("Error creating review notification: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(review)
}

// GetServiceReviews lists a service's approved reviews, newest first.
func (h *Handler) GetServiceReviews(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid service ID", http.StatusBadRequest)
		return
	}

	var reviews []models.Review
	if err := h.db.Where("service_id = ? AND is_approved = ?", serviceID, true).
		Order("created_at DESC").
		Preload("Customer").
		Find(&reviews).Error; err != nil {
		http.Error(w, "Error retrieving reviews", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reviews)
}
