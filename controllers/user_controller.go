package controllers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/field-service-api/config"
	"github.com/fieldops/field-service-api/middleware"
	"github.com/fieldops/field-service-api/models"
	"github.com/fieldops/field-service-api/services"
)

// findCurrentUser loads the authenticated caller's row. It writes the
// error response itself and returns false when the caller cannot be
// resolved.
func findCurrentUser(c *gin.Context) (models.User, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return models.User{}, false
	}

	db := config.GetDB()
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "User profile not found",
			},
		})
		return models.User{}, false
	}

	return user, true
}

// attachAvatarURL fills the computed AvatarURL field from object storage
func attachAvatarURL(user *models.User) {
	if user.AvatarS3Key == nil || *user.AvatarS3Key == "" {
		return
	}
	imageService := services.GetImageService()
	if imageService == nil {
		return
	}
	url, err := imageService.GetImageURL(*user.AvatarS3Key)
	if err != nil {
		log.Printf("Failed to generate avatar URL for user %s: %v", user.ID, err)
		return
	}
	user.AvatarURL = url
}

// ListUsers handles GET /api/v1/users - lists all users ordered by name
func ListUsers(c *gin.Context) {
	db := config.GetDB()
	var users []models.User
	if err := db.Order("name").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch users",
			},
		})
		return
	}

	for i := range users {
		attachAvatarURL(&users[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    users,
	})
}

// GetUser handles GET /api/v1/users/:id - fetches a single profile.
// The session bootstrap uses this to overlay profile data on top of
// token claims.
func GetUser(c *gin.Context) {
	db := config.GetDB()
	var user models.User
	if err := db.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "User not found",
			},
		})
		return
	}

	attachAvatarURL(&user)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func GetMyProfile(c *gin.Context) {
	user, ok := findCurrentUser(c)
	if !ok {
		return
	}

	attachAvatarURL(&user)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// UploadAvatar handles POST /api/v1/users/me/avatar - uploads a profile
// image to object storage and stores its key on the user row
func UploadAvatar(c *gin.Context) {
	user, ok := findCurrentUser(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "Avatar file is required",
			},
		})
		return
	}

	imageService := services.GetImageService()
	if imageService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STORAGE_UNAVAILABLE",
				"message": "Image storage is not configured",
			},
		})
		return
	}

	s3Key, err := imageService.UploadImage(fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	// Replace a previous avatar if one exists
	if user.AvatarS3Key != nil && *user.AvatarS3Key != "" {
		if err := imageService.DeleteImage(*user.AvatarS3Key); err != nil {
			log.Printf("Failed to delete previous avatar %s: %v", *user.AvatarS3Key, err)
		}
	}

	db := config.GetDB()
	if err := db.Model(&user).Update("avatar_s3_key", s3Key).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to save avatar",
			},
		})
		return
	}

	user.AvatarS3Key = &s3Key
	attachAvatarURL(&user)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}
