package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sachin80-coder/fixfinder-server/cmd/models"
	"github.com/Sachin80-coder/fixfinder-server/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type requestFixture struct {
	db         *gorm.DB
	router     *mux.Router
	customer   models.User
	plumbing   models.ServiceCategory
	electrical models.ServiceCategory
}

func newRequestFixture(t *testing.T) *requestFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.ServiceCategory{},
		&models.ServiceRequest{},
		&models.ServiceResponse{},
		&models.Notification{},
		&models.EmailOutbox{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	customer := models.User{FullName: "Asha Customer", Email: "asha@example.com", Phone: "9000000001", Location: "Mumbai", Role: models.RoleCustomer, Active: true}
	db.Create(&customer)

	plumbing := models.ServiceCategory{Name: "Plumbing"}
	electrical := models.ServiceCategory{Name: "Electrical"}
	db.Create(&plumbing)
	db.Create(&electrical)

	router := mux.NewRouter()
	NewHandler(db).RegisterProtectedRoutes(router)

	return &requestFixture{db: db, router: router, customer: customer, plumbing: plumbing, electrical: electrical}
}

func (f *requestFixture) seedProvider(t *testing.T, name, email, location string, categories ...models.ServiceCategory) models.User {
	provider := models.User{
		FullName: name,
		Email:    email,
		Phone:    "9000000000",
		Location: location,
		Role:     models.RoleProvider,
		Active:   true,
	}
	f.db.Create(&provider)
	if len(categories) > 0 {
		if err := f.db.Model(&provider).Association("ServiceCategories").Append(&categories); err != nil {
			t.Fatalf("Failed to assign categories: %v", err)
		}
	}
	return provider
}

func (f *requestFixture) do(t *testing.T, method, url string, body interface{}, userID uint) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req = req.WithContext(context.WithValue(req.Context(), utils.UserIDKey, userID))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestCreateRequestNotifiesMatchingProvidersOnly(t *testing.T) {
	f := newRequestFixture(t)
	matching := f.seedProvider(t, "Mumbai Plumber", "a@example.com", "Mumbai", f.plumbing)
	f.seedProvider(t, "Delhi Plumber", "b@example.com", "Delhi", f.plumbing)
	f.seedProvider(t, "Mumbai Electrician", "c@example.com", "Mumbai", f.electrical)

	rr := f.do(t, "POST", "/requests", map[string]interface{}{
		"category_id": f.plumbing.ID,
		"title":       "Leaky kitchen tap",
		"description": "Tap drips constantly, needs replacement",
		"location":    "Mumbai, Maharashtra",
	}, f.customer.ID)
	assert.Equal(t, http.StatusCreated, rr.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, float64(1), response["providers_notified"])

	var providerNotifications []models.Notification
	f.db.Where("notification_type = ?", models.NotifyServiceRequest).Find(&providerNotifications)
	assert.Len(t, providerNotifications, 1)
	assert.Equal(t, matching.ID, providerNotifications[0].UserID)

	var customerNotification models.Notification
	f.db.Where("user_id = ? AND notification_type = ?", f.customer.ID, models.NotifyRequestPosted).First(&customerNotification)
	assert.Contains(t, customerNotification.Message, "Leaky kitchen tap")

	// One email for the matched provider, one confirmation for the customer.
	var emails []models.EmailOutbox
	f.db.Order("id").Find(&emails)
	assert.Len(t, emails, 2)
	assert.Equal(t, "a@example.com", emails[0].Recipient)
	assert.Equal(t, "asha@example.com", emails[1].Recipient)
}

func TestCreateRequestFillsContactFromProfile(t *testing.T) {
	f := newRequestFixture(t)

	rr := f.do(t, "POST", "/requests", map[string]interface{}{
		"category_id": f.plumbing.ID,
		"title":       "Leaky tap",
		"description": "Drips",
		"location":    "Mumbai",
	}, f.customer.ID)
	assert.Equal(t, http.StatusCreated, rr.Code)

	var serviceRequest models.ServiceRequest
	f.db.First(&serviceRequest)
	assert.Equal(t, f.customer.FullName, serviceRequest.ContactName)
	assert.Equal(t, f.customer.Phone, serviceRequest.ContactPhone)
	assert.Equal(t, "medium", serviceRequest.Urgency)
	assert.Equal(t, models.RequestOpen, serviceRequest.Status)
}

func TestCreateRequestValidation(t *testing.T) {
	f := newRequestFixture(t)

	tests := []struct {
		name           string
		body           map[string]interface{}
		expectedStatus int
	}{
		{
			name:           "Missing title",
			body:           map[string]interface{}{"category_id": f.plumbing.ID, "description": "d", "location": "Mumbai"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unknown category",
			body:           map[string]interface{}{"category_id": 999, "title": "t", "description": "d", "location": "Mumbai"},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Invalid urgency",
			body:           map[string]interface{}{"category_id": f.plumbing.ID, "title": "t", "description": "d", "location": "Mumbai", "urgency": "extreme"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid budget bucket",
			body:           map[string]interface{}{"category_id": f.plumbing.ID, "title": "t", "description": "d", "location": "Mumbai", "budget": "1-2"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, "POST", "/requests", tt.body, f.customer.ID)
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestGetAvailableRequests(t *testing.T) {
	f := newRequestFixture(t)
	provider := f.seedProvider(t, "Mumbai Plumber", "a@example.com", "Mumbai", f.plumbing)

	rr := f.do(t, "POST", "/requests", map[string]interface{}{
		"category_id": f.plumbing.ID,
		"title":       "Leaky tap",
		"description": "Drips",
		"location":    "Mumbai, Maharashtra",
	}, f.customer.ID)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = f.do(t, "GET", "/requests/available", nil, provider.ID)
	assert.Equal(t, http.StatusOK, rr.Code)

	var available []models.ServiceRequest
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &available))
	assert.Len(t, available, 1)

	// Responding removes the request from the provider's available list.
	rr = f.do(t, "POST", fmt.Sprintf("/requests/%d/responses", available[0].ID), map[string]interface{}{
		"message":        "I can fix this tomorrow",
		"proposed_price": 750.0,
		"estimated_time": "2 hours",
	}, provider.ID)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = f.do(t, "GET", "/requests/available", nil, provider.ID)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &available))
	assert.Len(t, available, 0)

	// The customer was told about the response.
	var notification models.Notification
	f.db.Where("user_id = ? AND notification_type = ?", f.customer.ID, models.NotifyResponse).First(&notification)
	assert.Contains(t, notification.Message, "Mumbai Plumber")

	// Customers cannot browse the provider board.
	rr = f.do(t, "GET", "/requests/available", nil, f.customer.ID)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestProviderCanRespondTwice(t *testing.T) {
	f := newRequestFixture(t)
	provider := f.seedProvider(t, "Mumbai Plumber", "a@example.com", "Mumbai", f.plumbing)

	serviceRequest := models.ServiceRequest{
		CustomerID:  f.customer.ID,
		CategoryID:  f.plumbing.ID,
		Title:       "Leaky tap",
		Description: "Drips",
		Location:    "Mumbai",
		Status:      models.RequestOpen,
	}
	f.db.Create(&serviceRequest)

	for i := 0; i < 2; i++ {
		rr := f.do(t, "POST", fmt.Sprintf("/requests/%d/responses", serviceRequest.ID), map[string]interface{}{
			"message": fmt.Sprintf("Offer %d", i+1),
		}, provider.ID)
		assert.Equal(t, http.StatusCreated, rr.Code)
	}

	var count int64
	f.db.Model(&models.ServiceResponse{}).Where("service_request_id = ?", serviceRequest.ID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestUpdateRequestStatus(t *testing.T) {
	f := newRequestFixture(t)
	provider := f.seedProvider(t, "Mumbai Plumber", "a@example.com", "Mumbai", f.plumbing)

	serviceRequest := models.ServiceRequest{
		CustomerID:  f.customer.ID,
		CategoryID:  f.plumbing.ID,
		Title:       "Leaky tap",
		Description: "Drips",
		Location:    "Mumbai",
		Status:      models.RequestOpen,
	}
	f.db.Create(&serviceRequest)

	// Only the posting customer may change the status.
	rr := f.do(t, "PATCH", fmt.Sprintf("/requests/%d/status", serviceRequest.ID),
		map[string]interface{}{"status": "completed"}, provider.ID)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, "PATCH", fmt.Sprintf("/requests/%d/status", serviceRequest.ID),
		map[string]interface{}{"status": "bogus"}, f.customer.ID)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, "PATCH", fmt.Sprintf("/requests/%d/status", serviceRequest.ID),
		map[string]interface{}{"status": "assigned", "assigned_provider_id": provider.ID}, f.customer.ID)
	assert.Equal(t, http.StatusOK, rr.Code)

	var updated models.ServiceRequest
	f.db.First(&updated, serviceRequest.ID)
	assert.Equal(t, models.RequestAssigned, updated.Status)
	assert.Equal(t, provider.ID, *updated.AssignedProviderID)
}
