package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fieldops/field-service-api/config"
	"github.com/fieldops/field-service-api/middleware"
	"github.com/fieldops/field-service-api/models"
)

// The manage-users endpoint is the privileged user-management surface.
// It keeps the original response shape of the isolated admin endpoint:
// a bare {"error": "..."} body on failure instead of the usual envelope,
// and it never trusts the token's role claim. The caller's role is
// re-read from the users table on every request.

// CreateTechnicianRequest represents the request body for creating a technician
type CreateTechnicianRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// DeleteTechnicianRequest represents the request body for deleting a technician
type DeleteTechnicianRequest struct {
	UserID string `json:"user_id"`
}

// requireAdminCaller re-reads the caller's role from server-held data.
// Returns the caller row and false if an error response was written.
func requireAdminCaller(c *gin.Context) (models.User, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization"})
		return models.User{}, false
	}

	db := config.GetDB()
	var caller models.User
	if err := db.First(&caller, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return models.User{}, false
	}

	if caller.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only administrators can manage technicians"})
		return models.User{}, false
	}

	return caller, true
}

// CreateTechnician handles POST /api/v1/manage-users - creates a
// technician account with a pre-confirmed email (admins only)
func CreateTechnician(c *gin.Context) {
	if _, ok := requireAdminCaller(c); !ok {
		return
	}

	var req CreateTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	fullName := strings.TrimSpace(req.FullName)
	if email == "" || req.Password == "" || fullName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, password and name are required"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 6 characters"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	technician := models.User{
		Name:         fullName,
		Email:        email,
		Role:         "technician",
		PasswordHash: string(hash),
	}

	db := config.GetDB()
	if err := db.Create(&technician).Error; err != nil {
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "duplicate") || strings.Contains(errMsg, "unique") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A user with this email already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create technician"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": technician})
}

// DeleteTechnician handles DELETE /api/v1/manage-users - unassigns the
// technician from every order referencing them, then deletes the account
// (admins only; self-deletion rejected)
func DeleteTechnician(c *gin.Context) {
	caller, ok := requireAdminCaller(c)
	if !ok {
		return
	}

	var req DeleteTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if req.UserID == caller.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot delete yourself"})
		return
	}

	db := config.GetDB()
	var target models.User
	if err := db.First(&target, "id = ?", req.UserID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User not found"})
		return
	}

	// Referential-integrity cleanup happens here, not in the client:
	// every order pointing at the technician is unassigned first.
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ServiceOrder{}).
			Where("assigned_technician_id = ?", req.UserID).
			Update("assigned_technician_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&target).Error
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to delete technician"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
