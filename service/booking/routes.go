package booking

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Sachin80-coder/fixfinder-server/cmd/models"
	"github.com/Sachin80-coder/fixfinder-server/cmd/utils"
	"github.com/Sachin80-coder/fixfinder-server/service/mailer"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterProtectedRoutes sets up the booking routes. All of them require
// authentication.
func (h *Handler) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/services/{id:[0-9]+}/book", h.BookService).Methods("POST")
	router.HandleFunc("/bookings", h.GetMyBookings).Methods("GET")
	router.HandleFunc("/bookings/{id:[0-9]+}", h.GetBooking).Methods("GET")
	router.HandleFunc("/bookings/{id:[0-9]+}/accept", h.AcceptBooking).Methods("POST")
	router.HandleFunc("/bookings/{id:[0-9]+}/reject", h.RejectBooking).Methods("POST")
	router.HandleFunc("/bookings/{id:[0-9]+}/status", h.UpdateBookingStatus).Methods("PATCH")
	router.HandleFunc("/bookings/{id:[0-9]+}/cancel", h.CancelBooking).Methods("POST")
}

// BookService books a listing directly. Direct bookings start confirmed:
// the listing already advertises availability, so no provider acceptance
// step is involved (unlike request-board work, which providers opt into).
func (h *Handler) BookService(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid service ID", http.StatusBadRequest)
		return
	}

	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var service models.Service
	if err := h.db.Preload("Provider").Where("is_active = ?", true).
		First(&service, serviceID).Error; err != nil {
		http.Error(w, "Service not found", http.StatusNotFound)
		return
	}
	if service.ProviderID == currentUser.ID {
		http.Error(w, "You cannot book your own service", http.StatusForbidden)
		return
	}

	var bookRequest struct {
		ServiceDate         string `json:"service_date"`
		ServiceTime         string `json:"service_time"`
		CustomerAddress     string `json:"customer_address"`
		SpecialInstructions string `json:"special_instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&bookRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if bookRequest.ServiceDate == "" || bookRequest.ServiceTime == "" || bookRequest.CustomerAddress == "" {
		http.Error(w, "Service date, time and address are required", http.StatusBadRequest)
		return
	}

	serviceDate, err := time.Parse("2006-01-02", bookRequest.ServiceDate)
	if err != nil {
		http.Error(w, "Invalid service date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	serviceIDValue := uint(serviceID)
	booking := models.Booking{
		CustomerID:          currentUser.ID,
		ProviderID:          service.ProviderID,
		ServiceID:           &serviceIDValue,
		ServiceName:         service.Title,
		ServiceDescription:  service.Description,
		TotalPrice:          utils.ParsePriceRange(service.PriceRange),
		Status:              models.BookingConfirmed,
		ServiceDate:         serviceDate,
		ServiceTime:         bookRequest.ServiceTime,
		CustomerAddress:     bookRequest.CustomerAddress,
		SpecialInstructions: bookRequest.SpecialInstructions,
	}
	if err := h.db.Create(&booking).Error; err != nil {
		http.Error(w, "Error creating booking", http.StatusInternalServerError)
		return
	}

	h.notify(currentUser.ID, &booking, "Booking Confirmed",
		fmt.Sprintf("Your booking for '%s' on %s at %s is confirmed.", booking.ServiceName, bookRequest.ServiceDate, booking.ServiceTime),
		models.NotifyBookingConfirmed)
	h.notify(booking.ProviderID, &booking, "New Booking Received",
		fmt.Sprintf("%s booked '%s' for %s at %s.", currentUser.FullName, booking.ServiceName, bookRequest.ServiceDate, booking.ServiceTime),
		models.NotifyNewBooking)

	mailer.Enqueue(h.db, currentUser.Email, "Booking confirmed",
		fmt.Sprintf("Hi %s,\n\nYour booking for '%s' on %s at %s is confirmed. Total: %.2f",
			currentUser.FullName, booking.ServiceName, bookRequest.ServiceDate, booking.ServiceTime, booking.TotalPrice))
	if service.Provider != nil {
		mailer.Enqueue(h.db, service.Provider.Email, "New booking received",
			fmt.Sprintf("Hi %s,\n\n%s booked '%s' for %s at %s.\nAddress: %s",
				service.Provider.FullName, currentUser.FullName, booking.ServiceName,
				bookRequest.ServiceDate, booking.ServiceTime, booking.CustomerAddress))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(booking)
}

// GetMyBookings lists bookings where the authenticated user is either side.
func (h *Handler) GetMyBookings(w http.ResponseWriter, r *http.Request) {
	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.Model(&models.Booking{}).
		Where("customer_id = ? OR provider_id = ?", currentUser.ID, currentUser.ID)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		http.Error(w, "Error retrieving bookings", http.StatusInternalServerError)
		return
	}

	var bookings []models.Booking
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Preload("Customer").Preload("Provider").
		Find(&bookings).Error; err != nil {
		http.Error(w, "Error retrieving bookings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bookings":    bookings,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetBooking returns a booking to one of its participants.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, _, ok := h.participantBooking(w, r)
	if !ok {
		return
	}

	if err := h.db.Preload("Customer").Preload("Provider").Preload("Service").
		First(booking, booking.ID).Error; err != nil {
		http.Error(w, "Error retrieving booking", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// AcceptBooking confirms a pending booking. Provider only.
func (h *Handler) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	booking, currentUser, ok := h.participantBooking(w, r)
	if !ok {
		return
	}
	if booking.ProviderID != currentUser.ID {
		http.Error(w, "Only the provider can accept a booking", http.StatusForbidden)
		return
	}
	if booking.Status != models.BookingPending {
		http.Error(w, "Only pending bookings can be accepted", http.StatusConflict)
		return
	}

	if err := h.db.Model(booking).Update("status", models.BookingConfirmed).Error; err != nil {
		http.Error(w, "Error updating booking", http.StatusInternalServerError)
		return
	}
	booking.Status = models.BookingConfirmed

	h.notify(booking.CustomerID, booking, "Booking Accepted",
		fmt.Sprintf("%s accepted your booking for '%s'.", currentUser.FullName, booking.ServiceName),
		models.NotifyBookingAccepted)
	h.emailCustomer(booking, "Booking accepted",
		fmt.Sprintf("Your booking for '%s' was accepted by %s.", booking.ServiceName, currentUser.FullName))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// RejectBooking declines a pending booking. Provider only.
func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	booking, currentUser, ok := h.participantBooking(w, r)
	if !ok {
		return
	}
	if booking.ProviderID != currentUser.ID {
		http.Error(w, "Only the provider can reject a booking", http.StatusForbidden)
		return
	}
	if booking.Status != models.BookingPending {
		http.Error(w, "Only pending bookings can be rejected", http.StatusConflict)
		return
	}

	if err := h.db.Model(booking).Update("status", models.BookingCancelled).Error; err != nil {
		http.Error(w, "Error updating booking", http.StatusInternalServerError)
		return
	}
	booking.Status = models.BookingCancelled

	h.notify(booking.CustomerID, booking, "Booking Rejected",
		fmt.Sprintf("%s is unable to take your booking for '%s'.", currentUser.FullName, booking.ServiceName),
		models.NotifyBookingRejected)
	h.emailCustomer(booking, "Booking rejected",
		fmt.Sprintf("Unfortunately %s cannot take your booking for '%s'. You can book another provider anytime.",
			currentUser.FullName, booking.ServiceName))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// UpdateBookingStatus moves a booking to in_progress or completed.
// Provider only; transitions are enforced by the model's transition table.
func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	booking, currentUser, ok := h.participantBooking(w, r)
	if !ok {
		return
	}
	if booking.ProviderID != currentUser.ID {
		http.Error(w, "Only the provider can update the booking status", http.StatusForbidden)
		return
	}

	var statusRequest struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&statusRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if statusRequest.Status != models.BookingInProgress && statusRequest.Status != models.BookingCompleted {
		http.Error(w, "Status must be in_progress or completed", http.StatusBadRequest)
		return
	}
	if !booking.CanTransition(statusRequest.Status) {
		http.Error(w, fmt.Sprintf("Cannot move a %s booking to %s", booking.Status, statusRequest.Status), http.StatusConflict)
		return
	}

	if err := h.db.Model(booking).Update("status", statusRequest.Status).Error; err != nil {
		http.Error(w, "Error updating booking", http.StatusInternalServerError)
		return
	}
	booking.Status = statusRequest.Status

	h.notify(booking.CustomerID, booking, "Booking Update",
		fmt.Sprintf("Your booking for '%s' is now %s.", booking.ServiceName, booking.Status),
		models.NotifyStatusUpdate)
	h.emailCustomer(booking, "Booking update",
		fmt.Sprintf("Your booking for '%s' is now %s.", booking.ServiceName, booking.Status))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// CancelBooking cancels a booking with a reason from the accepted set.
// Either participant may cancel; completed and cancelled bookings are final.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, currentUser, ok := h.participantBooking(w, r)
	if !ok {
		return
	}

	if booking.Terminal() {
		http.Error(w, fmt.Sprintf("Booking is already %s", booking.Status), http.StatusConflict)
		return
	}

	var cancelRequest struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&cancelRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if _, ok := models.CancellationReasons[cancelRequest.Reason]; !ok {
		http.Error(w, "Invalid cancellation reason", http.StatusBadRequest)
		return
	}

	err := h.db.Model(booking).Updates(map[string]interface{}{
		"status":              models.BookingCancelled,
		"cancellation_reason": cancelRequest.Reason,
	}).Error
	if err != nil {
		http.Error(w, "Error cancelling booking", http.StatusInternalServerError)
		return
	}
	booking.Status = models.BookingCancelled
	booking.CancellationReason = cancelRequest.Reason

	reasonLabel := models.CancellationReasons[cancelRequest.Reason]
	message := fmt.Sprintf("Booking for '%s' was cancelled by %s. Reason: %s",
		booking.ServiceName, currentUser.FullName, reasonLabel)

	h.notify(booking.CustomerID, booking, "Booking Cancelled", message, models.NotifyBookingCancelled)
	h.notify(booking.ProviderID, booking, "Booking Cancelled", message, models.NotifyBookingCancelled)
	h.emailCustomer(booking, "Booking cancelled", message)
	h.emailProvider(booking, "Booking cancelled", message)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// participantBooking loads the booking in the URL and verifies the
// authenticated user is its customer or provider. Writes the error
// response itself when the check fails.
func (h *Handler) participantBooking(w http.ResponseWriter, r *http.Request) (*models.Booking, *models.User, bool) {
	vars := mux.Vars(r)
	bookingID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid booking ID", http.StatusBadRequest)
		return nil, nil, false
	}

	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, nil, false
	}

	var booking models.Booking
	if err := h.db.First(&booking, bookingID).Error; err != nil {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return nil, nil, false
	}
	if booking.CustomerID != currentUser.ID && booking.ProviderID != currentUser.ID {
		http.Error(w, "You do not have access to this booking", http.StatusForbidden)
		return nil, nil, false
	}
	return &booking, currentUser, true
}

func (h *Handler) notify(userID uint, booking *models.Booking, title, message, notifyType string) {
	notification := models.Notification{
		UserID:           userID,
		Title:            title,
		Message:          message,
		Type:             notifyType,
		RelatedBookingID: &booking.ID,
	}
	if err := h.db.Create(&notification).Error; err != nil {
		log.Printf("Error creating booking notification: %v", err)
	}
}

func (h *Handler) emailCustomer(booking *models.Booking, subject, body string) {
	var customer models.User
	if err := h.db.First(&customer, booking.CustomerID).Error; err != nil {
		log.Printf("Error loading booking customer: %v", err)
		return
	}
	mailer.Enqueue(h.db, customer.Email, subject, fmt.Sprintf("Hi %s,\n\n%s", customer.FullName, body))
}

func (h *Handler) emailProvider(booking *models.Booking, subject, body string) {
	var provider models.User
	if err := h.db.First(&provider, booking.ProviderID).Error; err != nil {
		log.Printf("Error loading booking provider: %v", err)
		return
	}
	mailer.Enqueue(h.db, provider.Email, subject, fmt.Sprintf("Hi %s,\n\n%s", provider.FullName, body))
}
