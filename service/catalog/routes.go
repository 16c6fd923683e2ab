package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Sachin80-coder/fixfinder-server/cmd/models"
	"github.com/Sachin80-coder/fixfinder-server/cmd/utils"
	"github.com/Sachin80-coder/fixfinder-server/service/mailer"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

const featuredLimit = 6

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes sets up the public catalog routes.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/categories", h.GetCategories).Methods("GET")
	router.HandleFunc("/services", h.GetServices).Methods("GET")
	router.HandleFunc("/services/featured", h.GetFeaturedServices).Methods("GET")
	router.HandleFunc("/services/{id:[0-9]+}", h.GetService).Methods("GET")
}

// RegisterProtectedRoutes sets up the provider-only listing management routes.
func (h *Handler) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/services", h.CreateService).Methods("POST")
	router.HandleFunc("/services/{id:[0-9]+}", h.UpdateService).Methods("PUT")
	router.HandleFunc("/services/{id:[0-9]+}", h.DeleteService).Methods("DELETE")
	router.HandleFunc("/services/{id:[0-9]+}/images", h.UploadServiceImages).Methods("POST")
}

// GetCategories lists all service categories.
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	var categories []models.ServiceCategory
	if err := h.db.Order("name").Find(&categories).Error; err != nil {
		http.Error(w, "Error retrieving categories", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(categories)
}

// GetServices lists active listings with optional category, search and
// location filters. Price sorts parse the leading amount of the free-text
// price range in memory, so they load the filtered set before ordering.
func (h *Handler) GetServices(w http.ResponseWriter, r *http.Request) {
	query := h.db.Model(&models.Service{}).
		Select("services.*").
		Joins("JOIN users ON users.id = services.provider_id").
		Joins("JOIN service_categories ON service_categories.id = services.category_id").
		Where("services.is_active = ?", true)

	if category := r.URL.Query().Get("category"); category != "" {
		query = query.Where("LOWER(service_categories.name) = ?", strings.ToLower(category))
	}
	if search := r.URL.Query().Get("search"); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(services.title) LIKE ? OR LOWER(services.description) LIKE ? OR LOWER(service_categories.name) LIKE ? OR LOWER(users.full_name) LIKE ?",
			term, term, term, term)
	}
	if location := r.URL.Query().Get("location"); location != "" {
		query = query.Where("LOWER(services.location) LIKE ?", "%"+strings.ToLower(location)+"%")
	}

	sortBy := r.URL.Query().Get("sort")
	switch sortBy {
	case "reviews":
		query = query.Order("services.reviews_count DESC")
	case "price-low", "price-high":
		// ordered in memory below
	default:
		query = query.Order("services.rating DESC")
	}

	var services []models.Service
	if err := query.Preload("Provider").Preload("Category").Preload("Images").
		Find(&services).Error; err != nil {
		http.Error(w, "Error retrieving services", http.StatusInternalServerError)
		return
	}

	switch sortBy {
	case "price-low":
		sort.SliceStable(services, func(i, j int) bool {
			return utils.ParsePriceRange(services[i].PriceRange) < utils.ParsePriceRange(services[j].PriceRange)
		})
	case "price-high":
		sort.SliceStable(services, func(i, j int) bool {
			return utils.ParsePriceRange(services[i].PriceRange) > utils.ParsePriceRange(services[j].PriceRange)
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"services": services,
		"total":    len(services),
	})
}

// GetFeaturedServices returns the top active listings by rating.
func (h *Handler) GetFeaturedServices(w http.ResponseWriter, r *http.Request) {
	var services []models.Service
	err := h.db.Where("is_active = ?", true).
		Order("rating DESC").Limit(featuredLimit).
		Preload("Provider").Preload("Category").Preload("Images").
		Find(&services).Error
	if err != nil {
		http.Error(w, "Error retrieving featured services", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(services)
}

// GetService returns a listing with its latest approved reviews.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid service ID", http.StatusBadRequest)
		return
	}

	var service models.Service
	if err := h.db.Preload("Provider").Preload("Category").Preload("Images").
		First(&service, serviceID).Error; err != nil {
		http.Error(w, "Service not found", http.StatusNotFound)
		return
	}

	var reviews []models.Review
	if err := h.db.Where("service_id = ? AND is_approved = ?", service.ID, true).
		Order("created_at DESC").Limit(10).
		Preload("Customer").
		Find(&reviews).Error; err != nil {
		http.Error(w, "Error retrieving reviews", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"service": service,
		"reviews": reviews,
	})
}

// CreateService creates a listing for the authenticated provider.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !currentUser.IsProvider() {
		http.Error(w, "Only providers can create services", http.StatusForbidden)
		return
	}

	var createRequest struct {
		CategoryID   uint   `json:"category_id"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		PriceRange   string `json:"price_range"`
		Location     string `json:"location"`
		Experience   string `json:"experience"`
		Availability string `json:"availability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if createRequest.Title == "" || createRequest.Description == "" || createRequest.PriceRange == "" || createRequest.CategoryID == 0 {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	var category models.ServiceCategory
	if err := h.db.First(&category, createRequest.CategoryID).Error; err != nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	if createRequest.Location == "" {
		createRequest.Location = currentUser.Location
	}
	if createRequest.Experience == "" {
		createRequest.Experience = currentUser.Experience
	}
	if createRequest.Availability == "" {
		createRequest.Availability = "Available"
	}

	service := models.Service{
		ProviderID:   currentUser.ID,
		CategoryID:   category.ID,
		Title:        createRequest.Title,
		Description:  createRequest.Description,
		PriceRange:   createRequest.PriceRange,
		Location:     createRequest.Location,
		Experience:   createRequest.Experience,
		Availability: createRequest.Availability,
		IsActive:     true,
	}
	if err := h.db.Create(&service).Error; err != nil {
		http.Error(w, "Error creating service", http.StatusInternalServerError)
		return
	}

	notification := models.Notification{
		UserID:  currentUser.ID,
		Title:   "Service Added Successfully",
		Message: fmt.Sprintf("Your service '%s' is now live in %s.", service.Title, category.Name),
		Type:    models.NotifyServiceAdded,
	}
	if err := h.db.Create(&notification).Error; err != nil {
		log.Printf("Error creating service notification: %v", err)
	}

	if contactEmail := os.Getenv("CONTACT_EMAIL"); contactEmail != "" {
		mailer.Enqueue(h.db, contactEmail, "New service listed",
			fmt.Sprintf("%s listed a new service '%s' in %s (%s).",
				currentUser.FullName, service.Title, category.Name, service.Location))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(service)
}

// UpdateService edits a listing owned by the authenticated provider.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	service, _, ok := h.ownedService(w, r)
	if !ok {
		return
	}

	var updateData struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		PriceRange   string `json:"price_range"`
		Location     string `json:"location"`
		Experience   string `json:"experience"`
		Availability string `json:"availability"`
		IsActive     *bool  `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateData); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}

	if updateData.Title != "" {
		service.Title = updateData.Title
	}
	if updateData.Description != "" {
		service.Description = updateData.Description
	}
	if updateData.PriceRange != "" {
		service.PriceRange = updateData.PriceRange
	}
	if updateData.Location != "" {
		service.Location = updateData.Location
	}
	if updateData.Experience != "" {
		service.Experience = updateData.Experience
	}
	if updateData.Availability != "" {
		service.Availability = updateData.Availability
	}
	if updateData.IsActive != nil {
		service.IsActive = *updateData.IsActive
	}

	if err := h.db.Save(service).Error; err != nil {
		http.Error(w, "Error updating service", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(service)
}

// DeleteService removes a listing owned by the authenticated provider.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	service, _, ok := h.ownedService(w, r)
	if !ok {
		return
	}

	var images []models.ServiceImage
	if err := h.db.Where("service_id = ?", service.ID).Find(&images).Error; err == nil {
		for i := range images {
			if err := utils.DeleteImage(images[i].Path); err != nil {
				log.Printf("Error deleting service image %s: %v", images[i].Path, err)
			}
		}
	}

	if err := h.db.Select("Images").Delete(service).Error; err != nil {
		http.Error(w, "Error deleting service", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Service deleted successfully",
	})
}

// UploadServiceImages attaches uploaded images to an owned listing.
func (h *Handler) UploadServiceImages(w http.ResponseWriter, r *http.Request) {
	service, _, ok := h.ownedService(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(utils.MaxImageSize); err != nil {
		http.Error(w, "Error parsing form data", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		http.Error(w, "No images provided", http.StatusBadRequest)
		return
	}

	var saved []models.ServiceImage
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			http.Error(w, "Error reading uploaded file", http.StatusBadRequest)
			return
		}
		path, err := utils.SaveImage(file, header)
		file.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		image := models.ServiceImage{
			ServiceID: service.ID,
			Path:      path,
		}
		if err := h.db.Create(&image).Error; err != nil {
			http.Error(w, "Error saving image", http.StatusInternalServerError)
			return
		}
		saved = append(saved, image)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Images uploaded successfully",
		"images":  saved,
	})
}

// ownedService loads the listing in the URL and verifies the authenticated
// user owns it. Writes the error response itself when the check fails.
func (h *Handler) ownedService(w http.ResponseWriter, r *http.Request) (*models.Service, *models.User, bool) {
	vars := mux.Vars(r)
	serviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid service ID", http.StatusBadRequest)
		return nil, nil, false
	}

	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, nil, false
	}

	var service models.Service
	if err := h.db.First(&service, serviceID).Error; err != nil {
		http.Error(w, "Service not found", http.StatusNotFound)
		return nil, nil, false
	}
	if service.ProviderID != currentUser.ID {
		http.Error(w, "You can only manage your own services", http.StatusForbidden)
		return nil, nil, false
	}
	return &service, currentUser, true
}
