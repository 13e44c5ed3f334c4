package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/field-service-api/config"
	"github.com/fieldops/field-service-api/models"
)

// LocationPayload is the structured location carried on the wire
type LocationPayload struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address" binding:"required"`
}

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	Title                string          `json:"title" binding:"required"`
	Description          string          `json:"description" binding:"required"`
	Date                 time.Time       `json:"date" binding:"required"`
	Location             LocationPayload `json:"location" binding:"required"`
	AssignedTechnicianID *string         `json:"assigned_technician_id"`
}

// UpdateStatusRequest represents the request body for a status change
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AssignOrderRequest represents the request body for (re)assigning an order.
// A null technician_id unassigns the order.
type AssignOrderRequest struct {
	TechnicianID *string `json:"technician_id"`
}

// ListOrders handles GET /api/v1/orders - lists all orders, newest
// scheduled date first
func ListOrders(c *gin.Context) {
	db := config.GetDB()
	var orders []models.ServiceOrder
	if err := db.Order("date DESC").Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch service orders",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// CreateOrder handles POST /api/v1/orders - creates a new order (admins only).
// Status always starts at pending and the creation timestamp is assigned
// here, never taken from the client.
func CreateOrder(c *gin.Context) {
	user, ok := findCurrentUser(c)
	if !ok {
		return
	}

	if user.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only admins can create service orders",
			},
		})
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	if req.AssignedTechnicianID != nil {
		db := config.GetDB()
		var technician models.User
		if err := db.First(&technician, "id = ?", *req.AssignedTechnicianID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "TECHNICIAN_NOT_FOUND",
					"message": "Assigned technician does not exist",
				},
			})
			return
		}
	}

	order := models.ServiceOrder{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Location: models.Location{
			Lat:     req.Location.Lat,
			Lng:     req.Location.Lng,
			Address: req.Location.Address,
		},
		Status:               "pending",
		AssignedTechnicianID: req.AssignedTechnicianID,
		CreatedByID:          user.ID,
	}

	db := config.GetDB()
	if err := db.Create(&order).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create service order",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status.
// Admins can change any order; technicians only orders assigned to them.
// Any transition between known states is allowed.
func UpdateOrderStatus(c *gin.Context) {
	user, ok := findCurrentUser(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	if !models.ValidOrderStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_STATUS",
				"message": "Unknown service order status",
			},
		})
		return
	}

	db := config.GetDB()
	var order models.ServiceOrder
	if err := db.First(&order, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Service order not found",
			},
		})
		return
	}

	canUpdate := user.Role == "admin" ||
		(order.AssignedTechnicianID != nil && *order.AssignedTechnicianID == user.ID)
	if !canUpdate {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You can only update orders assigned to you",
			},
		})
		return
	}

	if err := db.Model(&order).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update status",
			},
		})
		return
	}

	order.Status = req.Status
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// AssignOrder handles PATCH /api/v1/orders/:id/assign (admins only)
func AssignOrder(c *gin.Context) {
	user, ok := findCurrentUser(c)
	if !ok {
		return
	}

	if user.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only admins can assign service orders",
			},
		})
		return
	}

	var req AssignOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	db := config.GetDB()
	var order models.ServiceOrder
	if err := db.First(&order, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Service order not found",
			},
		})
		return
	}

	if req.TechnicianID != nil {
		var technician models.User
		if err := db.First(&technician, "id = ?", *req.TechnicianID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "TECHNICIAN_NOT_FOUND",
					"message": "Assigned technician does not exist",
				},
			})
			return
		}
	}

	if err := db.Model(&order).Update("assigned_technician_id", req.TechnicianID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to assign service order",
			},
		})
		return
	}

	order.AssignedTechnicianID = req.TechnicianID
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// DeleteOrder handles DELETE /api/v1/orders/:id (admins only)
func DeleteOrder(c *gin.Context) {
	user, ok := findCurrentUser(c)
	if !ok {
		return
	}

	if user.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only admins can delete service orders",
			},
		})
		return
	}

	db := config.GetDB()
	var order models.ServiceOrder
	if err := db.First(&order, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Service order not found",
			},
		})
		return
	}

	if err := db.Delete(&order).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to delete service order",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Service order deleted",
	})
}
