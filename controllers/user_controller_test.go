package controllers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldops/field-service-api/config"
	"github.com/fieldops/field-service-api/models"
	"github.com/fieldops/field-service-api/services"
)

func newAvatarRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, "/users/me/avatar", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestListUsers(t *testing.T) {
	db := setupControllerTestDB(t)
	config.SetDB(db)
	services.SetImageService(nil)
	admin, _ := createTestUsers(t, db)

	router := setupTestRouter()
	router.GET("/users", mockAuthMiddleware(admin.ID), ListUsers)
	req, _ := http.NewRequest(http.MethodGet, "/users", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response["success"].(bool))

	data := response["data"].([]interface{})
	assert.Len(t, data, 2)

	// Ordered by name: "Admin User" before "Tech User"
	first := data[0].(map[string]interface{})
	assert.Equal(t, "Admin User", first["name"])
	assert.NotContains(t, first, "password_hash", "Password hashes never leave the API")
}

func TestGetUser(t *testing.T) {
	db := setupControllerTestDB(t)
	config.SetDB(db)
	services.SetImageService(nil)
	admin, technician := createTestUsers(t, db)

	tests := []struct {
		name           string
		targetID       string
		expectedStatus int
		expectedError  string
	}{
		{"existing user", technician.ID, http.StatusOK, ""},
		{"unknown user", "no-such-id", http.StatusNotFound, "USER_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/users/:id", mockAuthMiddleware(admin.ID), GetUser)
			req, _ := http.NewRequest(http.MethodGet, "/users/"+tt.targetID, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response map[string]interface{}
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			if tt.expectedError != "" {
				errorData := response["error"].(map[string]interface{})
				assert.Equal(t, tt.expectedError, errorData["code"])
				return
			}
			data := response["data"].(map[string]interface{})
			assert.Equal(t, technician.Email, data["email"])
		})
	}
}

func TestGetMyProfile(t *testing.T) {
	db := setupControllerTestDB(t)
	config.SetDB(db)
	services.SetImageService(nil)
	_, technician := createTestUsers(t, db)

	router := setupTestRouter()
	router.GET("/users/me", mockAuthMiddleware(technician.ID), GetMyProfile)
	req, _ := http.NewRequest(http.MethodGet, "/users/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, technician.ID, data["id"])
	assert.Equal(t, "technician", data["role"])
}

func TestUploadAvatar(t *testing.T) {
	db := setupControllerTestDB(t)
	config.SetDB(db)
	_, technician := createTestUsers(t, db)

	mockS3 := services.NewMockS3Service()
	services.InitImageService(mockS3)
	defer services.SetImageService(nil)

	router := setupTestRouter()
	router.POST("/users/me/avatar", mockAuthMiddleware(technician.ID), UploadAvatar)

	// PNG magic bytes keep the validator happy
	pngContent := append([]byte{0x89, 0x50, 0x4E, 0x47}, bytes.Repeat([]byte{0}, 64)...)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, newAvatarRequest(t, "avatar", "me.png", pngContent))
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.NotEmpty(t, data["avatar_url"], "Response should carry a viewable URL")

	var stored models.User
	assert.NoError(t, db.First(&stored, "id = ?", technician.ID).Error)
	assert.NotNil(t, stored.AvatarS3Key)
	firstKey := *stored.AvatarS3Key
	assert.True(t, mockS3.FileExists(firstKey))

	// A second upload replaces the stored object
	w = httptest.NewRecorder()
	router.ServeHTTP(w, newAvatarRequest(t, "avatar", "me2.png", pngContent))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, db.First(&stored, "id = ?", technician.ID).Error)
	assert.NotEqual(t, firstKey, *stored.AvatarS3Key)
	assert.False(t, mockS3.FileExists(firstKey), "Previous avatar should be deleted")
}

func TestUploadAvatarErrors(t *testing.T) {
	db := setupControllerTestDB(t)
	config.SetDB(db)
	_, technician := createTestUsers(t, db)

	t.Run("missing file", func(t *testing.T) {
		services.InitImageService(services.NewMockS3Service())
		defer services.SetImageService(nil)

		router := setupTestRouter()
		router.POST("/users/me/avatar", mockAuthMiddleware(technician.ID), UploadAvatar)

		req, _ := http.NewRequest(http.MethodPost, "/users/me/avatar", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("storage not configured", func(t *testing.T) {
		services.SetImageService(nil)

		router := setupTestRouter()
		router.POST("/users/me/avatar", mockAuthMiddleware(technician.ID), UploadAvatar)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, newAvatarRequest(t, "avatar", "me.png", []byte{0x89, 0x50, 0x4E, 0x47}))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
