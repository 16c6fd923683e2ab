package request

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

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

// RegisterProtectedRoutes sets up the request board routes. All of them
// require authentication.
func (h *Handler) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/requests", h.CreateRequest).Methods("POST")
	router.HandleFunc("/requests", h.GetMyRequests).Methods("GET")
	router.HandleFunc("/requests/available", h.GetAvailableRequests).Methods("GET")
	router.HandleFunc("/requests/{id:[0-9]+}", h.GetRequest).Methods("GET")
	router.HandleFunc("/requests/{id:[0-9]+}/responses", h.CreateResponse).Methods("POST")
	router.HandleFunc("/requests/{id:[0-9]+}/status", h.UpdateRequestStatus).Methods("PATCH")
}

// CreateRequest posts a new service request and notifies matching providers.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var createRequest struct {
		CategoryID   uint   `json:"category_id"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		Location     string `json:"location"`
		Urgency      string `json:"urgency"`
		Budget       string `json:"budget"`
		ContactName  string `json:"contact_name"`
		ContactPhone string `json:"contact_phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if createRequest.Title == "" || createRequest.Description == "" || createRequest.Location == "" || createRequest.CategoryID == 0 {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if createRequest.Urgency == "" {
		createRequest.Urgency = "medium"
	}
	if _, ok := models.RequestUrgencies[createRequest.Urgency]; !ok {
		http.Error(w, "Invalid urgency", http.StatusBadRequest)
		return
	}
	if createRequest.Budget != "" {
		if _, ok := models.RequestBudgets[createRequest.Budget]; !ok {
			http.Error(w, "Invalid budget range", http.StatusBadRequest)
			return
		}
	}

	var category models.ServiceCategory
	if err := h.db.First(&category, createRequest.CategoryID).Error; err != nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	// Contact details default to the poster's profile.
	if createRequest.ContactName == "" {
		createRequest.ContactName = currentUser.FullName
	}
	if createRequest.ContactPhone == "" {
		createRequest.ContactPhone = currentUser.Phone
	}

	serviceRequest := models.ServiceRequest{
		CustomerID:   currentUser.ID,
		CategoryID:   category.ID,
		Title:        createRequest.Title,
		Description:  createRequest.Description,
		Location:     createRequest.Location,
		Urgency:      createRequest.Urgency,
		Budget:       createRequest.Budget,
		ContactName:  createRequest.ContactName,
		ContactPhone: createRequest.ContactPhone,
		Status:       models.RequestOpen,
	}
	if err := h.db.Create(&serviceRequest).Error; err != nil {
		http.Error(w, "Error creating request", http.StatusInternalServerError)
		return
	}

	matched := h.notifyMatchingProviders(&serviceRequest, &category)

	notification := models.Notification{
		UserID:  currentUser.ID,
		Title:   "Request Posted Successfully",
		Message: fmt.Sprintf("Your request '%s' has been posted. %d providers in your area were notified.", serviceRequest.Title, matched),
		Type:    models.NotifyRequestPosted,
	}
	if err := h.db.Create(&notification).Error; err != nil {
		log.Printf("Error creating request notification: %v", err)
	}

	mailer.Enqueue(h.db, currentUser.Email, "Your service request is live",
		fmt.Sprintf("Hi %s,\n\nYour request '%s' in %s has been posted. %d providers were notified and may respond shortly.",
			currentUser.FullName, serviceRequest.Title, category.Name, matched))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"request":            serviceRequest,
		"providers_notified": matched,
	})
}

// notifyMatchingProviders finds providers in the request's city offering
// the request's category and notifies each one. The city is the first
// comma segment of the free-text location ("Mumbai, Maharashtra" matches
// providers located in Mumbai). Returns the number of providers notified.
func (h *Handler) notifyMatchingProviders(serviceRequest *models.ServiceRequest, category *models.ServiceCategory) int {
	city := strings.ToLower(strings.TrimSpace(strings.Split(serviceRequest.Location, ",")[0]))

	var providers []models.User
	err := h.db.Model(&models.User{}).
		Select("DISTINCT users.*").
		Joins("JOIN user_service_categories usc ON usc.user_id = users.id").
		Where("users.role = ? AND users.active = ?", models.RoleProvider, true).
		Where("usc.service_category_id = ?", serviceRequest.CategoryID).
		Where("LOWER(users.location) LIKE ?", "%"+city+"%").
		Find(&providers).Error
	if err != nil {
		log.Printf("Error matching providers for request %d: %v", serviceRequest.ID, err)
		return 0
	}

	for i := range providers {
		provider := &providers[i]
		notification := models.Notification{
			UserID:  provider.ID,
			Title:   "New Service Request in Your Area",
			Message: fmt.Sprintf("A customer needs %s in %s: '%s'", category.Name, serviceRequest.Location, serviceRequest.Title),
			Type:    models.NotifyServiceRequest,
		}
		if err := h.db.Create(&notification).Error; err != nil {
			log.Printf("Error notifying provider %d: %v", provider.ID, err)
			continue
		}
		mailer.Enqueue(h.db, provider.Email, "New service request near you",
			fmt.Sprintf("Hi %s,\n\nA customer in %s posted a %s request: '%s'.\n\n%s\n\nLog in to respond.",
				provider.FullName, serviceRequest.Location, category.Name, serviceRequest.Title, serviceRequest.Description))
	}
	return len(providers)
}

// GetMyRequests lists the authenticated customer's own requests.
func (h *Handler) GetMyRequests(w http.ResponseWriter, r *http.Request) {
	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := h.db.Where("customer_id = ?", currentUser.ID)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var requests []models.ServiceRequest
	if err := query.Order("created_at DESC").
		Preload("Category").Preload("Responses").Preload("Responses.Provider").
		Find(&requests).Error; err != nil {
		http.Error(w, "Error retrieving requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

// GetAvailableRequests lists open requests the authenticated provider can
// respond to: matching city and category, not their own, not yet responded.
func (h *Handler) GetAvailableRequests(w http.ResponseWriter, r *http.Request) {
	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !currentUser.IsProvider() {
		http.Error(w, "Only providers can browse available requests", http.StatusForbidden)
		return
	}

	city := strings.ToLower(strings.TrimSpace(strings.Split(currentUser.Location, ",")[0]))

	var requests []models.ServiceRequest
	err = h.db.Model(&models.ServiceRequest{}).
		Where("status = ?", models.RequestOpen).
		Where("customer_id <> ?", currentUser.ID).
		Where("category_id IN (SELECT service_category_id FROM user_service_categories WHERE user_id = ?)", currentUser.ID).
		Where("LOWER(location) LIKE ?", "%"+city+"%").
		Where("id NOT IN (SELECT service_request_id FROM service_responses WHERE provider_id = ?)", currentUser.ID).
		Order("created_at DESC").
		Preload("Category").Preload("Customer").
		Find(&requests).Error
	if err != nil {
		http.Error(w, "Error retrieving requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

// GetRequest returns a request with its responses. Visible to the posting
// customer and to providers.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var serviceRequest models.ServiceRequest
	if err := h.db.Preload("Category").Preload("Customer").
		Preload("Responses").Preload("Responses.Provider").
		First(&serviceRequest, requestID).Error; err != nil {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}

	if serviceRequest.CustomerID != currentUser.ID && !currentUser.IsProvider() {
		http.Error(w, "You do not have access to this request", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(serviceRequest)
}

// CreateResponse records a provider's reply to an open request.
func (h *Handler) CreateResponse(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !currentUser.IsProvider() {
		http.Error(w, "Only providers can respond to requests", http.StatusForbidden)
		return
	}

	var serviceRequest models.ServiceRequest
	if err := h.db.Preload("Customer").First(&serviceRequest, requestID).Error; err != nil {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	if serviceRequest.Status != models.RequestOpen {
		http.Error(w, "This request is no longer open", http.StatusConflict)
		return
	}
	if serviceRequest.CustomerID == currentUser.ID {
		http.Error(w, "You cannot respond to your own request", http.StatusForbidden)
		return
	}

	var responseRequest struct {
		Message       string  `json:"message"`
		ProposedPrice float64 `json:"proposed_price"`
		EstimatedTime string  `json:"estimated_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&responseRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if responseRequest.Message == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	response := models.ServiceResponse{
		ServiceRequestID: serviceRequest.ID,
		ProviderID:       currentUser.ID,
		Message:          responseRequest.Message,
		ProposedPrice:    responseRequest.ProposedPrice,
		EstimatedTime:    responseRequest.EstimatedTime,
	}
	if err := h.db.Create(&response).Error; err != nil {
		http.Error(w, "Error creating response", http.StatusInternalServerError)
		return
	}

	notification := models.Notification{
		UserID:  serviceRequest.CustomerID,
		Title:   "New Response to Your Request",
		Message: fmt.Sprintf("%s responded to your request '%s'.", currentUser.FullName, serviceRequest.Title),
		Type:    models.NotifyResponse,
	}
	if err := h.db.Create(&notification).Error; err != nil {
		log.Printf("Error creating response notification: %v", err)
	}

	if serviceRequest.Customer != nil {
		mailer.Enqueue(h.db, serviceRequest.Customer.Email, "A provider responded to your request",
			fmt.Sprintf("Hi %s,\n\n%s responded to your request '%s':\n\n%s",
				serviceRequest.Customer.FullName, currentUser.FullName, serviceRequest.Title, response.Message))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// UpdateRequestStatus lets the posting customer move their request through
// its lifecycle. Assigning a provider is part of the same call.
func (h *Handler) UpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var serviceRequest models.ServiceRequest
	if err := h.db.First(&serviceRequest, requestID).Error; err != nil {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	if serviceRequest.CustomerID != currentUser.ID {
		http.Error(w, "You can only update your own requests", http.StatusForbidden)
		return
	}

	var statusRequest struct {
		Status             string `json:"status"`
		AssignedProviderID *uint  `json:"assigned_provider_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&statusRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if !models.RequestStatuses[statusRequest.Status] {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{"status": statusRequest.Status}
	if statusRequest.AssignedProviderID != nil {
		var provider models.User
		if err := h.db.Where("role = ?", models.RoleProvider).
			First(&provider, *statusRequest.AssignedProviderID).Error; err != nil {
			http.Error(w, "Provider not found", http.StatusNotFound)
			return
		}
		updates["assigned_provider_id"] = provider.ID
	}

	if err := h.db.Model(&serviceRequest).Updates(updates).Error; err != nil {
		http.Error(w, "Error updating request", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(serviceRequest)
}
