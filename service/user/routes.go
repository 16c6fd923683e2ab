package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sachin80-coder/fixfinder-server/cmd/models"
	"github.com/Sachin80-coder/fixfinder-server/cmd/utils"
	"github.com/Sachin80-coder/fixfinder-server/service/mailer"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const resetTokenTTL = 24 * time.Hour

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes sets up the public auth and directory routes.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", h.HandleRegister).Methods("POST")
	router.HandleFunc("/login", h.handleLogin).Methods("POST")
	router.HandleFunc("/reset-password", h.handlePasswordResetRequest).Methods("POST")
	router.HandleFunc("/reset-password/confirm", h.handlePasswordReset).Methods("POST")
	router.HandleFunc("/providers", h.GetProviders).Methods("GET")
	router.HandleFunc("/providers/{id}", h.GetProvider).Methods("GET")
}

// RegisterProtectedRoutes sets up routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	router.HandleFunc("/users/{id}", h.UpdateUser).Methods("PUT")
	router.HandleFunc("/users/{id}", h.DeactivateUser).Methods("DELETE")
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var registerRequest struct {
		FullName     string `json:"full_name"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		Phone        string `json:"phone"`
		Location     string `json:"location"`
		Role         string `json:"role"`
		BusinessName string `json:"business_name"`
		Experience   string `json:"experience"`
		CategoryIDs  []uint `json:"category_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}

	if registerRequest.FullName == "" || registerRequest.Email == "" || registerRequest.Password == "" || registerRequest.Phone == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if len(registerRequest.Password) < 6 {
		http.Error(w, "Password must be at least 6 characters", http.StatusBadRequest)
		return
	}
	if registerRequest.Role == "" {
		registerRequest.Role = models.RoleCustomer
	}
	if registerRequest.Role != models.RoleCustomer && registerRequest.Role != models.RoleProvider {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	var existingUser models.User
	if result := h.db.Where("email = ?", registerRequest.Email).First(&existingUser); !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		if result.Error != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		log.Printf("Registration attempt with duplicate email %s", registerRequest.Email)
		http.Error(w, "Email is already in use", http.StatusConflict)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(registerRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error hashing password", http.StatusInternalServerError)
		return
	}

	tx := h.db.Begin()

	user := models.User{
		FullName:     registerRequest.FullName,
		Email:        registerRequest.Email,
		PasswordHash: string(passwordHash),
		Phone:        registerRequest.Phone,
		Location:     registerRequest.Location,
		Role:         registerRequest.Role,
		Active:       true,
		BusinessName: registerRequest.BusinessName,
		Experience:   registerRequest.Experience,
	}

	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key") {
			http.Error(w, "Email is already in use", http.StatusConflict)
			return
		}
		http.Error(w, "Error registering user", http.StatusInternalServerError)
		return
	}

	if user.IsProvider() && len(registerRequest.CategoryIDs) > 0 {
		var categories []models.ServiceCategory
		if err := tx.Find(&categories, registerRequest.CategoryIDs).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error loading service categories", http.StatusInternalServerError)
			return
		}
		if err := tx.Model(&user).Association("ServiceCategories").Append(&categories); err != nil {
			tx.Rollback()
			http.Error(w, "Error assigning service categories", http.StatusInternalServerError)
			return
		}
	}

	notification := models.Notification{
		UserID:  user.ID,
		Title:   "Welcome to FixFinder",
		Message: fmt.Sprintf("Hi %s, your account has been created successfully.", user.FullName),
		Type:    models.NotifyRegistration,
	}
	if err := tx.Create(&notification).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error registering user", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error committing transaction", http.StatusInternalServerError)
		return
	}

	mailer.Enqueue(h.db, user.Email, "Welcome to FixFinder",
		fmt.Sprintf("Hi %s,\n\nYour FixFinder account has been created. You can now log in and get started.", user.FullName))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "User registered successfully",
		"user_id": user.ID,
		"role":    user.Role,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var user models.User
	result := h.db.Where("email = ? AND active = ?", loginRequest.Email, true).First(&user)
	if result.Error != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(loginRequest.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, err := generateJWT(user.ID)
	if err != nil {
		http.Error(w, "Error generating access token", http.StatusInternalServerError)
		return
	}

	notification := models.Notification{
		UserID:  user.ID,
		Title:   "Login Successful",
		Message: fmt.Sprintf("Welcome back, %s!", user.FullName),
		Type:    models.NotifyLogin,
	}
	if err := h.db.Create(&notification).Error; err != nil {
		log.Printf("Error creating login notification: %v", err)
	}

	// Role in the response lets clients route admins to their own surface.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":      "Login successful",
		"access_token": accessToken,
		"user_id":      user.ID,
		"full_name":    user.FullName,
		"role":         user.Role,
	})
}

func generateJWT(userID uint) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", userID),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("SECRET_KEY")))
}

func (h *Handler) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var resetRequest struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&resetRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// The response never reveals whether the account exists.
	var user models.User
	if err := h.db.Where("email = ? AND active = ?", resetRequest.Email, true).First(&user).Error; err == nil {
		token := models.PasswordResetToken{
			UserID:    user.ID,
			Token:     uuid.New().String(),
			ExpiresAt: time.Now().Add(resetTokenTTL),
		}
		if err := h.db.Create(&token).Error; err != nil {
			log.Printf("Error creating password reset token: %v", err)
		} else {
			mailer.Enqueue(h.db, user.Email, "Reset your FixFinder password",
				fmt.Sprintf("Hi %s,\n\nUse the token below to reset your password. It expires in 24 hours.\n\n%s\n\nIgnore this email if you did not request a reset.",
					user.FullName, token.Token))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "If that email is registered, a reset link has been sent",
	})
}

func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var resetConfirm struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&resetConfirm); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(resetConfirm.Password) < 6 {
		http.Error(w, "Password must be at least 6 characters", http.StatusBadRequest)
		return
	}

	var token models.PasswordResetToken
	if err := h.db.Where("token = ?", resetConfirm.Token).First(&token).Error; err != nil {
		http.Error(w, "Invalid or expired reset token", http.StatusUnauthorized)
		return
	}
	if !token.Valid() {
		http.Error(w, "Invalid or expired reset token", http.StatusUnauthorized)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(resetConfirm.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error hashing password", http.StatusInternalServerError)
		return
	}

	tx := h.db.Begin()
	if err := tx.Model(&models.User{}).Where("id = ?", token.UserID).
		Update("password_hash", string(passwordHash)).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating password", http.StatusInternalServerError)
		return
	}
	if err := tx.Model(&token).Update("used", true).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating password", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error committing transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Password reset successfully",
	})
}

// GetUser retrieves a specific user by ID
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.Preload("ServiceCategories").First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// UpdateUser updates the authenticated user's own profile.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if currentUser.ID != uint(userID) {
		http.Error(w, "You can only update your own profile", http.StatusForbidden)
		return
	}

	var updateData struct {
		FullName     string `json:"full_name"`
		Phone        string `json:"phone"`
		Location     string `json:"location"`
		BusinessName string `json:"business_name"`
		Experience   string `json:"experience"`
		CategoryIDs  []uint `json:"category_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateData); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}

	if updateData.FullName != "" {
		currentUser.FullName = updateData.FullName
	}
	if updateData.Phone != "" {
		currentUser.Phone = updateData.Phone
	}
	if updateData.Location != "" {
		currentUser.Location = updateData.Location
	}
	if currentUser.IsProvider() {
		if updateData.BusinessName != "" {
			currentUser.BusinessName = updateData.BusinessName
		}
		if updateData.Experience != "" {
			currentUser.Experience = updateData.Experience
		}
	}

	if err := h.db.Save(currentUser).Error; err != nil {
		http.Error(w, "Error updating user", http.StatusInternalServerError)
		return
	}

	if currentUser.IsProvider() && updateData.CategoryIDs != nil {
		var categories []models.ServiceCategory
		if err := h.db.Find(&categories, updateData.CategoryIDs).Error; err != nil {
			http.Error(w, "Error loading service categories", http.StatusInternalServerError)
			return
		}
		if err := h.db.Model(currentUser).Association("ServiceCategories").Replace(&categories); err != nil {
			http.Error(w, "Error updating service categories", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(currentUser)
}

// DeactivateUser soft-deletes the authenticated user's own account.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if currentUser.ID != uint(userID) {
		http.Error(w, "You can only deactivate your own account", http.StatusForbidden)
		return
	}

	if err := h.db.Model(currentUser).Update("active", false).Error; err != nil {
		http.Error(w, "Error deactivating account", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Account deactivated successfully",
	})
}

// GetProviders lists active providers with their categories and a rating
// summary derived from their listings.
func (h *Handler) GetProviders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.Model(&models.User{}).Where("role = ? AND active = ?", models.RoleProvider, true)

	if location := r.URL.Query().Get("location"); location != "" {
		query = query.Where("LOWER(location) LIKE ?", "%"+strings.ToLower(location)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		http.Error(w, "Error retrieving providers", http.StatusInternalServerError)
		return
	}

	var providers []models.User
	if err := query.Preload("ServiceCategories").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&providers).Error; err != nil {
		http.Error(w, "Error retrieving providers", http.StatusInternalServerError)
		return
	}

	results := make([]map[string]interface{}, 0, len(providers))
	for i := range providers {
		rating, count := h.providerRating(providers[i].ID)
		results = append(results, map[string]interface{}{
			"provider":      providers[i],
			"rating":        rating,
			"reviews_count": count,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"providers":   results,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetProvider retrieves a single provider profile.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	providerID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid provider ID", http.StatusBadRequest)
		return
	}

	var provider models.User
	if err := h.db.Preload("ServiceCategories").
		Where("role = ? AND active = ?", models.RoleProvider, true).
		First(&provider, providerID).Error; err != nil {
		http.Error(w, "Provider not found", http.StatusNotFound)
		return
	}

	rating, count := h.providerRating(provider.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"provider":      provider,
		"rating":        rating,
		"reviews_count": count,
	})
}

func (h *Handler) providerRating(providerID uint) (float64, int64) {
	var stats struct {
		Avg   float64
		Total int64
	}
	err := h.db.Model(&models.Review{}).
		Where("provider_id = ? AND is_approved = ?", providerID, true).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS total").
		Scan(&stats).Error
	if err != nil {
		log.Printf("Error computing provider rating: %v", err)
		return 0, 0
	}
	return stats.Avg, stats.Total
}
