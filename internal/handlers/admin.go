// internal/handlers/admin.go
package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clayfire/storefront-api/internal/middleware"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/services"
	"github.com/clayfire/storefront-api/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/analytics
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	endDate := time.Now().UTC()
	startDate := endDate.AddDate(0, 0, -30)

	if startStr := c.Query("start_date"); startStr != "" {
		parsed, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid start date format", nil)
			return
		}
		startDate = parsed
	}

	if endStr := c.Query("end_date"); endStr != "" {
		parsed, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid end date format", nil)
			return
		}
		endDate = parsed
	}

	metrics := []string{"orders", "paid_orders", "revenue", "new_products", "top_products"}
	if metricsStr := c.Query("metrics"); metricsStr != "" {
		metrics = strings.Split(metricsStr, ",")
	}

	analytics, err := h.adminService.GetAnalytics(c.Request.Context(), startDate, endDate, metrics)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"analytics":  analytics,
		"start_date": startDate.Format("2006-01-02"),
		"end_date":   endDate.Format("2006-01-02"),
	})
}

// GET /admin/profiles
func (h *AdminHandler) GetProfiles(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminProfileFilter{
		PaginationParams: params,
	}

	if userType := c.Query("user_type"); userType != "" {
		uType := models.UserType(userType)
		filter.UserType = &uType
	}

	if createdAfter := c.Query("created_after"); createdAfter != "" {
		if t, err := time.Parse("2006-01-02", createdAfter); err == nil {
			filter.CreatedAfter = &t
		}
	}

	if createdBefore := c.Query("created_before"); createdBefore != "" {
		if t, err := time.Parse("2006-01-02", createdBefore); err == nil {
			filter.CreatedBefore = &t
		}
	}

	profiles, total, err := h.adminService.GetProfiles(filter)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(profiles, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /admin/profiles/:id/role
func (h *AdminHandler) UpdateProfileRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "profile")
	if !ok {
		return
	}

	var req struct {
		UserType models.UserType `json:"user_type" validate:"required,oneof=customer admin business"`
	}
	if !bindJSON(c, &req) {
		return
	}

	admin, _ := c.MustGet(middleware.ContextProfile).(*models.Profile)
	if admin == nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	profile, err := h.adminService.UpdateProfileRole(id, req.UserType, admin.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, profile)
}

// GET /admin/audit-logs
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminAuditLogFilter{
		PaginationParams: params,
		ResourceType:     c.Query("resource_type"),
	}

	if userIDStr := c.Query("user_id"); userIDStr != "" {
		if userID, err := uuid.Parse(userIDStr); err == nil {
			filter.UserID = &userID
		}
	}

	if createdAfter := c.Query("created_after"); createdAfter != "" {
		if t, err := time.Parse("2006-01-02", createdAfter); err == nil {
			filter.CreatedAfter = &t
		}
	}

	logs, total, err := h.adminService.GetAuditLogs(filter)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(logs, total, params)
	utils.PaginatedResponse(c, result)
}
