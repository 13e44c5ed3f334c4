package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fieldops/field-service-api/config"
	"github.com/fieldops/field-service-api/models"
)

func setupControllerTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.ServiceOrder{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// mockAuthMiddleware injects an authenticated caller the way
// middleware.EnsureValidToken would
func mockAuthMiddleware(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

func createTestUsers(t *testing.T, db *gorm.DB) (admin models.User, technician models.User) {
	admin = models.User{
		Name:         "Admin User",
		Email:        "admin@example.com",
		Role:         "admin",
		PasswordHash: "x",
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("Failed to create admin: %v", err)
	}

	technician = models.User{
		Name:         "Tech User",
		Email:        "tech@example.com",
		Role:         "technician",
		PasswordHash: "x",
	}
	if err := db.Create(&technician).Error; err != nil {
		t.Fatalf("Failed to create technician: %v", err)
	}

	return admin, technician
}

func orderRequestBody() map[string]interface{} {
	return map[string]interface{}{
		"title":       "Fix printer",
		"description": "Paper jam on the second floor",
		"date":        "2025-03-01T10:00:00Z",
		"location": map[string]interface{}{
			"lat":     1.0,
			"lng":     2.0,
			"address": "Springfield",
		},
	}
}

func TestCreateOrder(t *testing.T) {
	db := setupControllerTestDB(t)
	config.SetDB(db)
	admin, technician := createTestUsers(t, db)

	tests := []struct {
		name           string
		callerID       string
		requestBody    map[string]interface{}
		expectedStatus int
		expectedError  string
		checkResponse  func(t *testing.T, response map[string]interface{})
	}{
		{
			name:           "Successfully create order as admin",
			callerID:       admin.ID,
			requestBody:    orderRequestBody(),
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, response map[string]interface{}) {
				assert.True(t, response["success"].(bool))
				data := response["data"].(map[string]interface{})
				assert.Equal(t, "Fix printer", data["title"])
				assert.Equal(t, "pending", data["status"], "New orders always start pending")
				assert.Nil(t, data["assigned_technician_id"])
				assert.NotEmpty(t, data["id"])
				assert.NotEmpty(t, data["created_at"], "Creation time is server-assigned")

				location := data["location"].(map[string]interface{})
				assert.Equal(t, "Springfield", location["address"])
				assert.Equal(t, float64(1), location["lat"])
			},
		},
		{
			name:           "Fail to create order as technician",
			callerID:       technician.ID,
			requestBody:    orderRequestBody(),
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
		{
			name:     "Fail with missing title",
			callerID: admin.ID,
			requestBody: map[string]interface{}{
				"description": "Paper jam",
				"date":        "2025-03-01T10:00:00Z",
				"location":    map[string]interface{}{"address": "Springfield"},
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:     "Fail with unknown assignee",
			callerID: admin.ID,
			requestBody: func() map[string]interface{} {
				body := orderRequestBody()
				body["assigned_technician_id"] = "no-such-user"
				return body
			}(),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "TECHNICIAN_NOT_FOUND",
		},
		{
			name:           "Fail with user not found",
			callerID:       "nonexistent-id",
			requestBody:    orderRequestBody(),
			expectedStatus: http.StatusNotFound,
			expectedError:  "USER_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.POST("/orders", mockAuthMiddleware(tt.callerID), CreateOrder)

			body, _ := json.Marshal(tt.requestBody)
			req, _ := http.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response map[string]interface{}
			err := json.Unmarshal(w.Body.Bytes(), &response)
			assert.NoError(t, err)

			if tt.expectedError != "" {
				assert.False(t, response["success"].(bool))
				errorData := response["error"].(map[string]interface{})
				assert.Equal(t, tt.expectedError, errorData["code"])
			}

			if tt.checkResponse != nil {
				tt.checkResponse(t, response)
			}
		})
	}
}

func createTestOrder(t *testing.T, db *gorm.DB, createdBy string, technicianID *string) models.ServiceOrder {
	order := models.ServiceOrder{
		Title:                "Inspect boiler",
		Description:          "Annual inspection",
		Date:                 time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Location:             models.Location{Lat: 1, Lng: 2, Address: "Springfield"},
		Status:               "pending",
		AssignedTechnicianID: technicianID,
		CreatedByID:          createdBy,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	return order
}

func TestUpdateOrderStatus(t *testing.T) {
	db := setupControllerTestDB(t)
	config.SetDB(db)
	admin, technician := createTestUsers(t, db)

	other := models.User{Name: "Other Tech", Email: "other@example.com", Role: "technician", PasswordHash: "x"}
	assert.NoError(t, db.Create(&other).Error)

	assigned := createTestOrder(t, db, admin.ID, &technician.ID)
	unassigned := createTestOrder(t, db, admin.ID, nil)

	tests := []struct {
		name           string
		callerID       string
		orderID        string
		status         string
		expectedStatus int
		expectedError  string
	}{
		{"admin updates any order", admin.ID, unassigned.ID, "cancelled", http.StatusOK, ""},
		{"assigned technician updates own order", technician.ID, assigned.ID, "completed", http.StatusOK, ""},
		{"other technician blocked", other.ID, assigned.ID, "completed", http.StatusForbidden, "FORBIDDEN"},
		{"technician blocked on unassigned order", technician.ID, unassigned.ID, "in-progress", http.StatusForbidden, "FORBIDDEN"},
		{"unknown status rejected", admin.ID, assigned.ID, "done", http.StatusBadRequest, "INVALID_STATUS"},
		{"missing order", admin.ID, "no-such-order", "pending", http.StatusNotFound, "ORDER_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.PATCH("/orders/:id/status", mockAuthMiddleware(tt.callerID), UpdateOrderStatus)

			body, _ := json.Marshal(map[string]string{"status": tt.status})
			req, _ := http.NewRequest(http.MethodPatch, "/orders/"+tt.orderID+"/status", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedError == "" {
				var stored models.ServiceOrder
				assert.NoError(t, db.First(&stored, "id = ?", tt.orderID).Error)
				assert.Equal(t, tt.status, stored.Status, "Status should be persisted")
			}
		})
	}
}

func TestAssignOrder(t *testing.T) {
	db := setupControllerTestDB(t)
	config.SetDB(db)
	admin, technician := createTestUsers(t, db)
	order := createTestOrder(t, db, admin.ID, nil)

	// Technicians cannot assign
	router := setupTestRouter()
	router.PATCH("/orders/:id/assign", mockAuthMiddleware(technician.ID), AssignOrder)
	body, _ := json.Marshal(map[string]interface{}{"technician_id": technician.ID})
	req, _ := http.NewRequest(http.MethodPatch, "/orders/"+order.ID+"/assign", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin assigns
	router = setupTestRouter()
	router.PATCH("/orders/:id/assign", mockAuthMiddleware(admin.ID), AssignOrder)
	req, _ = http.NewRequest(http.MethodPatch, "/orders/"+order.ID+"/assign", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var stored models.ServiceOrder
	assert.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	assert.NotNil(t, stored.AssignedTechnicianID)
	assert.Equal(t, technician.ID, *stored.AssignedTechnicianID)

	// Admin unassigns with null technician_id
	nullBody, _ := json.Marshal(map[string]interface{}{"technician_id": nil})
	req, _ = http.NewRequest(http.MethodPatch, "/orders/"+order.ID+"/assign", bytes.NewBuffer(nullBody))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	assert.Nil(t, stored.AssignedTechnicianID)
}

func TestDeleteOrder(t *testing.T) {
	db := setupControllerTestDB(t)
	config.SetDB(db)
	admin, technician := createTestUsers(t, db)
	order := createTestOrder(t, db, admin.ID, nil)

	// Technicians cannot delete
	router := setupTestRouter()
	router.DELETE("/orders/:id", mockAuthMiddleware(technician.ID), DeleteOrder)
	req, _ := http.NewRequest(http.MethodDelete, "/orders/"+order.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin deletes
	router = setupTestRouter()
	router.DELETE("/orders/:id", mockAuthMiddleware(admin.ID), DeleteOrder)
	req, _ = http.NewRequest(http.MethodDelete, "/orders/"+order.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.ServiceOrder{}).Where("id = ?", order.ID).Count(&count)
	assert.Equal(t, int64(0), count, "Order should be gone after delete")
}

func TestListOrders(t *testing.T) {
	db := setupControllerTestDB(t)
	config.SetDB(db)
	admin, technician := createTestUsers(t, db)
	createTestOrder(t, db, admin.ID, &technician.ID)
	createTestOrder(t, db, admin.ID, nil)

	router := setupTestRouter()
	router.GET("/orders", mockAuthMiddleware(admin.ID), ListOrders)
	req, _ := http.NewRequest(http.MethodGet, "/orders", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].([]interface{})
	assert.Len(t, data, 2)
}
