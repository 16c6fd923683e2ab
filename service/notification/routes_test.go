package notification

import (
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

func setupNotificationTest(t *testing.T) (*gorm.DB, *mux.Router, models.User, models.User) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Notification{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	userA := models.User{FullName: "Asha", Email: "asha@example.com", Phone: "9000000001", Role: models.RoleCustomer, Active: true}
	userB := models.User{FullName: "Ravi", Email: "ravi@example.com", Phone: "9000000002", Role: models.RoleCustomer, Active: true}
	db.Create(&userA)
	db.Create(&userB)

	router := mux.NewRouter()
	NewHandler(db).RegisterProtectedRoutes(router)
	return db, router, userA, userB
}

func notifRequest(method, url string, userID uint) *http.Request {
	req := httptest.NewRequest(method, url, nil)
	return req.WithContext(context.WithValue(req.Context(), utils.UserIDKey, userID))
}

func seedNotifications(db *gorm.DB, userID uint, unread, read int) {
	for i := 0; i < unread; i++ {
		db.Create(&models.Notification{UserID: userID, Title: "Unread", Message: "m", Type: models.NotifyStatusUpdate})
	}
	for i := 0; i < read; i++ {
		db.Create(&models.Notification{UserID: userID, Title: "Read", Message: "m", Type: models.NotifyStatusUpdate, IsRead: true})
	}
}

func TestGetNotifications(t *testing.T) {
	db, router, userA, userB := setupNotificationTest(t)
	seedNotifications(db, userA.ID, 2, 1)
	seedNotifications(db, userB.ID, 5, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, notifRequest("GET", "/notifications", userA.ID))
	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, float64(3), response["total"])

	// Unread filter.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, notifRequest("GET", "/notifications?unread=true", userA.ID))
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, float64(2), response["total"])
}

func TestGetUnreadCount(t *testing.T) {
	db, router, userA, _ := setupNotificationTest(t)
	seedNotifications(db, userA.ID, 3, 2)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, notifRequest("GET", "/notifications/unread-count", userA.ID))
	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, float64(3), response["unread_count"])
}

func TestMarkAsRead(t *testing.T) {
	db, router, userA, userB := setupNotificationTest(t)

	notification := models.Notification{UserID: userA.ID, Title: "Hello", Message: "m", Type: models.NotifyStatusUpdate}
	db.Create(&notification)

	// Another user's notification is invisible.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, notifRequest("POST", fmt.Sprintf("/notifications/%d/read", notification.ID), userB.ID))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, notifRequest("POST", fmt.Sprintf("/notifications/%d/read", notification.ID), userA.ID))
	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, true, response["success"])

	var updated models.Notification
	db.First(&updated, notification.ID)
	assert.True(t, updated.IsRead)
}

func TestMarkAllAsRead(t *testing.T) {
	db, router, userA, userB := setupNotificationTest(t)
	seedNotifications(db, userA.ID, 4, 1)
	seedNotifications(db, userB.ID, 2, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, notifRequest("POST", "/notifications/read-all", userA.ID))
	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, float64(4), response["marked_count"])

	var unreadA, unreadB int64
	db.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userA.ID, false).Count(&unreadA)
	db.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userB.ID, false).Count(&unreadB)
	assert.Equal(t, int64(0), unreadA)
	assert.Equal(t, int64(2), unreadB)
}
