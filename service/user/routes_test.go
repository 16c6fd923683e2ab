package user

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
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupUserTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.ServiceCategory{},
		&models.PasswordResetToken{},
		&models.Review{},
		&models.Notification{},
		&models.EmailOutbox{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func userRouter(db *gorm.DB) *mux.Router {
	router := mux.NewRouter()
	handler := NewHandler(db)
	handler.RegisterRoutes(router)
	handler.RegisterProtectedRoutes(router)
	return router
}

func postJSON(t *testing.T, router *mux.Router, url string, body map[string]interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("Failed to encode request body: %v", err)
	}
	req := httptest.NewRequest("POST", url, &buf)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRegister(t *testing.T) {
	db := setupUserTestDB(t)
	router := userRouter(db)

	rr := postJSON(t, router, "/register", map[string]interface{}{
		"full_name": "Asha Customer",
		"email":     "asha@example.com",
		"password":  "secret123",
		"phone":     "9000000001",
		"location":  "Mumbai",
	})
	assert.Equal(t, http.StatusCreated, rr.Code)

	var user models.User
	db.Where("email = ?", "asha@example.com").First(&user)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.True(t, user.Active)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	var notification models.Notification
	db.Where("user_id = ?", user.ID).First(&notification)
	assert.Equal(t, models.NotifyRegistration, notification.Type)

	var email models.EmailOutbox
	db.First(&email)
	assert.Equal(t, "asha@example.com", email.Recipient)
	assert.Equal(t, models.OutboxPending, email.Status)
}

func TestRegisterProviderWithCategories(t *testing.T) {
	db := setupUserTestDB(t)
	router := userRouter(db)

	plumbing := models.ServiceCategory{Name: "Plumbing"}
	electrical := models.ServiceCategory{Name: "Electrical"}
	db.Create(&plumbing)
	db.Create(&electrical)

	rr := postJSON(t, router, "/register", map[string]interface{}{
		"full_name":     "Ravi Provider",
		"email":         "ravi@example.com",
		"password":      "secret123",
		"phone":         "9000000002",
		"location":      "Mumbai",
		"role":          "provider",
		"business_name": "Ravi Plumbing Works",
		"experience":    "5 years",
		"category_ids":  []uint{plumbing.ID, electrical.ID},
	})
	assert.Equal(t, http.StatusCreated, rr.Code)

	var provider models.User
	db.Preload("ServiceCategories").Where("email = ?", "ravi@example.com").First(&provider)
	assert.True(t, provider.IsProvider())
	assert.Equal(t, "Ravi Plumbing Works", provider.BusinessName)
	assert.Len(t, provider.ServiceCategories, 2)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := setupUserTestDB(t)
	router := userRouter(db)

	body := map[string]interface{}{
		"full_name": "Asha Customer",
		"email":     "asha@example.com",
		"password":  "secret123",
		"phone":     "9000000001",
	}
	rr := postJSON(t, router, "/register", body)
	assert.Equal(t, http.StatusCreated, rr.Code)

	var usersBefore, emailsBefore int64
	db.Model(&models.User{}).Count(&usersBefore)
	db.Model(&models.EmailOutbox{}).Count(&emailsBefore)

	rr = postJSON(t, router, "/register", body)
	assert.Equal(t, http.StatusConflict, rr.Code)

	// No user created, no welcome email enqueued.
	var usersAfter, emailsAfter int64
	db.Model(&models.User{}).Count(&usersAfter)
	db.Model(&models.EmailOutbox{}).Count(&emailsAfter)
	assert.Equal(t, usersBefore, usersAfter)
	assert.Equal(t, emailsBefore, emailsAfter)
}

func TestRegisterValidation(t *testing.T) {
	db := setupUserTestDB(t)
	router := userRouter(db)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "Short password",
			body: map[string]interface{}{"full_name": "A", "email": "a@example.com", "password": "123", "phone": "9"},
		},
		{
			name: "Missing email",
			body: map[string]interface{}{"full_name": "A", "password": "secret123", "phone": "9"},
		},
		{
			name: "Admin role not self-assignable",
			body: map[string]interface{}{"full_name": "A", "email": "a@example.com", "password": "secret123", "phone": "9", "role": "admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, router, "/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	db := setupUserTestDB(t)
	router := userRouter(db)

	hash, _ := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	user := models.User{
		FullName:     "Asha Customer",
		Email:        "asha@example.com",
		PasswordHash: string(hash),
		Phone:        "9000000001",
		Role:         models.RoleCustomer,
		Active:       true,
	}
	db.Create(&user)

	t.Run("Wrong password", func(t *testing.T) {
		rr := postJSON(t, router, "/login", map[string]interface{}{
			"email": "asha@example.com", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Unknown email", func(t *testing.T) {
		rr := postJSON(t, router, "/login", map[string]interface{}{
			"email": "nobody@example.com", "password": "secret123",
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Successful login", func(t *testing.T) {
		rr := postJSON(t, router, "/login", map[string]interface{}{
			"email": "asha@example.com", "password": "secret123",
		})
		assert.Equal(t, http.StatusOK, rr.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		assert.NotEmpty(t, response["access_token"])
		assert.Equal(t, models.RoleCustomer, response["role"])

		var notification models.Notification
		db.Where("user_id = ? AND notification_type = ?", user.ID, models.NotifyLogin).First(&notification)
		assert.Equal(t, "Login Successful", notification.Title)
	})

	t.Run("Deactivated account rejected", func(t *testing.T) {
		db.Model(&user).Update("active", false)
		rr := postJSON(t, router, "/login", map[string]interface{}{
			"email": "asha@example.com", "password": "secret123",
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestPasswordResetFlow(t *testing.T) {
	db := setupUserTestDB(t)
	router := userRouter(db)

	hash, _ := bcrypt.GenerateFromPassword([]byte("oldsecret"), bcrypt.DefaultCost)
	user := models.User{
		FullName:     "Asha Customer",
		Email:        "asha@example.com",
		PasswordHash: string(hash),
		Phone:        "9000000001",
		Role:         models.RoleCustomer,
		Active:       true,
	}
	db.Create(&user)

	// The request never reveals whether the account exists.
	rr := postJSON(t, router, "/reset-password", map[string]interface{}{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, rr.Code)
	var tokens int64
	db.Model(&models.PasswordResetToken{}).Count(&tokens)
	assert.Equal(t, int64(0), tokens)

	rr = postJSON(t, router, "/reset-password", map[string]interface{}{"email": "asha@example.com"})
	assert.Equal(t, http.StatusOK, rr.Code)

	var token models.PasswordResetToken
	db.Where("user_id = ?", user.ID).First(&token)
	assert.False(t, token.Used)
	assert.True(t, token.Valid())

	var email models.EmailOutbox
	db.First(&email)
	assert.Equal(t, "asha@example.com", email.Recipient)
	assert.Contains(t, email.Body, token.Token)

	// Confirm with the token.
	rr = postJSON(t, router, "/reset-password/confirm", map[string]interface{}{
		"token": token.Token, "password": "newsecret",
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	var updated models.User
	db.First(&updated, user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newsecret")))

	// The token is single-use.
	rr = postJSON(t, router, "/reset-password/confirm", map[string]interface{}{
		"token": token.Token, "password": "anothersecret",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Garbage tokens are rejected.
	rr = postJSON(t, router, "/reset-password/confirm", map[string]interface{}{
		"token": "not-a-token", "password": "anothersecret",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateAndDeactivateUser(t *testing.T) {
	db := setupUserTestDB(t)
	router := userRouter(db)

	userA := models.User{FullName: "Asha", Email: "asha@example.com", Phone: "9000000001", Role: models.RoleCustomer, Active: true}
	userB := models.User{FullName: "Ravi", Email: "ravi@example.com", Phone: "9000000002", Role: models.RoleCustomer, Active: true}
	db.Create(&userA)
	db.Create(&userB)

	authed := func(method, url string, body map[string]interface{}, userID uint) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(method, url, &buf)
		req = req.WithContext(context.WithValue(req.Context(), utils.UserIDKey, userID))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	// Updating someone else's profile is forbidden.
	rr := authed("PUT", fmt.Sprintf("/users/%d", userB.ID), map[string]interface{}{"full_name": "Hacked"}, userA.ID)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = authed("PUT", fmt.Sprintf("/users/%d", userA.ID), map[string]interface{}{"location": "Pune"}, userA.ID)
	assert.Equal(t, http.StatusOK, rr.Code)
	var updated models.User
	db.First(&updated, userA.ID)
	assert.Equal(t, "Pune", updated.Location)

	rr = authed("DELETE", fmt.Sprintf("/users/%d", userA.ID), nil, userA.ID)
	assert.Equal(t, http.StatusOK, rr.Code)
	db.First(&updated, userA.ID)
	assert.False(t, updated.Active)
}

func TestGetProviders(t *testing.T) {
	db := setupUserTestDB(t)
	router := userRouter(db)

	provider := models.User{FullName: "Ravi", Email: "ravi@example.com", Phone: "9000000002", Location: "Mumbai", Role: models.RoleProvider, Active: true}
	customer := models.User{FullName: "Asha", Email: "asha@example.com", Phone: "9000000001", Role: models.RoleCustomer, Active: true}
	inactive := models.User{FullName: "Gone", Email: "gone@example.com", Phone: "9000000003", Role: models.RoleProvider, Active: false}
	db.Create(&provider)
	db.Create(&customer)
	db.Create(&inactive)

	req := httptest.NewRequest("GET", "/providers", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, float64(1), response["total"])
}
