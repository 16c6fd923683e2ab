package contact

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

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

// RegisterRoutes sets up the public contact form route.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/contact", h.SubmitContactForm).Methods("POST")
}

// RegisterProtectedRoutes sets up the provider contact relay route.
func (h *Handler) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/providers/{id:[0-9]+}/contact", h.ContactProvider).Methods("POST")
}

// SubmitContactForm stores a contact message and forwards it to the
// configured support address.
func (h *Handler) SubmitContactForm(w http.ResponseWriter, r *http.Request) {
	var contactRequest struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&contactRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if contactRequest.Name == "" || contactRequest.Email == "" || contactRequest.Message == "" {
		http.Error(w, "Name, email and message are required", http.StatusBadRequest)
		return
	}
	if contactRequest.Subject == "" {
		contactRequest.Subject = "general"
	}
	subjectLabel, ok := models.ContactSubjects[contactRequest.Subject]
	if !ok {
		http.Error(w, "Invalid subject", http.StatusBadRequest)
		return
	}

	message := models.ContactMessage{
		Name:    contactRequest.Name,
		Email:   contactRequest.Email,
		Phone:   contactRequest.Phone,
		Subject: contactRequest.Subject,
		Message: contactRequest.Message,
	}
	if err := h.db.Create(&message).Error; err != nil {
		http.Error(w, "Error saving message", http.StatusInternalServerError)
		return
	}

	if contactEmail := os.Getenv("CONTACT_EMAIL"); contactEmail != "" {
		mailer.Enqueue(h.db, contactEmail, fmt.Sprintf("Contact form: %s", subjectLabel),
			fmt.Sprintf("From: %s <%s> %s\n\n%s", message.Name, message.Email, message.Phone, message.Message))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Thank you for reaching out. We will get back to you soon.",
	})
}

// ContactProvider relays a message from the authenticated user to a
// provider by email, with a copy to the sender.
func (h *Handler) ContactProvider(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	providerID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid provider ID", http.StatusBadRequest)
		return
	}

	currentUser, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var provider models.User
	if err := h.db.Where("role = ? AND active = ?", models.RoleProvider, true).
		First(&provider, providerID).Error; err != nil {
		http.Error(w, "Provider not found", http.StatusNotFound)
		return
	}

	var relayRequest struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&relayRequest); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if relayRequest.Message == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	mailer.Enqueue(h.db, provider.Email, fmt.Sprintf("Message from %s via FixFinder", currentUser.FullName),
		fmt.Sprintf("Hi %s,\n\n%s\n\nReply to %s at %s or %s.",
			provider.FullName, relayRequest.Message, currentUser.FullName, currentUser.Email, currentUser.Phone))
	mailer.Enqueue(h.db, currentUser.Email, fmt.Sprintf("Copy of your message to %s", provider.FullName),
		fmt.Sprintf("Hi %s,\n\nThis is a copy of the message you sent to %s:\n\n%s",
			currentUser.FullName, provider.FullName, relayRequest.Message))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Your message has been sent to the provider",
	})
}
