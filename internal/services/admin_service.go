// internal/services/admin_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

type AdminService struct {
	db *gorm.DB
}

type AdminDashboardStats struct {
	TotalProducts    int64   `json:"total_products"`
	ActiveProducts   int64   `json:"active_products"`
	LowStockProducts int64   `json:"low_stock_products"`
	TotalCategories  int64   `json:"total_categories"`
	TotalOrders      int64   `json:"total_orders"`
	PendingOrders    int64   `json:"pending_orders"`
	OrdersThisMonth  int64   `json:"orders_this_month"`
	TotalCustomers   int64   `json:"total_customers"`
	TotalRevenue     float64 `json:"total_revenue"`
	MonthlyRevenue   float64 `json:"monthly_revenue"`
	RevenueGrowth    float64 `json:"revenue_growth"`
}

type AdminProfileFilter struct {
	utils.PaginationParams
	UserType      *models.UserType `json:"user_type,omitempty"`
	CreatedAfter  *time.Time       `json:"created_after,omitempty"`
	CreatedBefore *time.Time       `json:"created_before,omitempty"`
}

type AdminAuditLogFilter struct {
	utils.PaginationParams
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
	CreatedAfter *time.Time `json:"created_after,omitempty"`
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	var lastMonthRevenue float64

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, model interface{}, query string, args ...interface{}) {
		g.Go(func() error {
			q := s.db.WithContext(gctx).Model(model)
			if query != "" {
				q = q.Where(query, args...)
			}
			return q.Count(dst).Error
		})
	}
	revenue := func(dst *float64, query string, args ...interface{}) {
		g.Go(func() error {
			return s.db.WithContext(gctx).Model(&models.Order{}).
				Where(query, args...).
				Select("COALESCE(SUM(total_amount), 0)").
				Scan(dst).Error
		})
	}

	// Catalog statistics
	count(&stats.TotalProducts, &models.Product{}, "")
	count(&stats.ActiveProducts, &models.Product{}, "is_active = ?", true)
	count(&stats.LowStockProducts, &models.Product{}, "track_inventory = ? AND inventory_quantity <= low_stock_threshold", true)
	count(&stats.TotalCategories, &models.Category{}, "")

	// Order statistics
	count(&stats.TotalOrders, &models.Order{}, "")
	count(&stats.PendingOrders, &models.Order{}, "status = ?", models.OrderStatusPending)
	count(&stats.OrdersThisMonth, &models.Order{}, "created_at >= ?", monthStart)
	count(&stats.TotalCustomers, &models.Profile{}, "user_type = ?", models.UserTypeCustomer)

	// Revenue statistics
	revenue(&stats.TotalRevenue, "payment_status = ?", models.PaymentStatusPaid)
	revenue(&stats.MonthlyRevenue, "payment_status = ? AND created_at >= ?", models.PaymentStatusPaid, monthStart)
	revenue(&lastMonthRevenue, "payment_status = ? AND created_at >= ? AND created_at < ?",
		models.PaymentStatusPaid, lastMonthStart, monthStart)

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}

	stats.TotalRevenue = utils.RoundMoney(stats.TotalRevenue)
	stats.MonthlyRevenue = utils.RoundMoney(stats.MonthlyRevenue)
	if lastMonthRevenue > 0 {
		stats.RevenueGrowth = utils.RoundMoney((stats.MonthlyRevenue - lastMonthRevenue) / lastMonthRevenue * 100)
	}

	return stats, nil
}

// Analytics and Reporting
func (s *AdminService) GetAnalytics(ctx context.Context, startDate, endDate time.Time, metrics []string) (map[string]interface{}, error) {
	analytics := make(map[string]interface{})
	db := s.db.WithContext(ctx)
	end := endDate.AddDate(0, 0, 1)

	for _, metric := range metrics {
		switch strings.TrimSpace(metric) {
		case "orders":
			var count int64
			if err := db.Model(&models.Order{}).
				Where("created_at >= ? AND created_at < ?", startDate, end).
				Count(&count).Error; err != nil {
				return nil, fmt.Errorf("failed to count orders: %w", err)
			}
			analytics["orders"] = count

		case "paid_orders":
			var count int64
			if err := db.Model(&models.Order{}).
				Where("payment_status = ? AND created_at >= ? AND created_at < ?", models.PaymentStatusPaid, startDate, end).
				Count(&count).Error; err != nil {
				return nil, fmt.Errorf("failed to count paid orders: %w", err)
			}
			analytics["paid_orders"] = count

		case "revenue":
			var revenue float64
			if err := db.Model(&models.Order{}).
				Where("payment_status = ? AND created_at >= ? AND created_at < ?", models.PaymentStatusPaid, startDate, end).
				Select("COALESCE(SUM(total_amount), 0)").Scan(&revenue).Error; err != nil {
				return nil, fmt.Errorf("failed to sum revenue: %w", err)
			}
			analytics["revenue"] = utils.RoundMoney(revenue)

		case "new_products":
			var count int64
			if err := db.Model(&models.Product{}).
				Where("created_at >= ? AND created_at < ?", startDate, end).
				Count(&count).Error; err != nil {
				return nil, fmt.Errorf("failed to count products: %w", err)
			}
			analytics["new_products"] = count

		case "top_products":
			type topProduct struct {
				ProductID   uuid.UUID `json:"product_id"`
				ProductName string    `json:"product_name"`
				Quantity    int64     `json:"quantity"`
				Revenue     float64   `json:"revenue"`
			}
			var top []topProduct
			if err := db.Table("order_items").
				Select("order_items.product_id, order_items.product_name, SUM(order_items.quantity) AS quantity, SUM(order_items.total_price) AS revenue").
				Joins("JOIN orders ON orders.id = order_items.order_id").
				Where("orders.payment_status = ? AND orders.created_at >= ? AND orders.created_at < ?", models.PaymentStatusPaid, startDate, end).
				Group("order_items.product_id, order_items.product_name").
				Order("quantity DESC").
				Limit(10).
				Scan(&top).Error; err != nil {
				return nil, fmt.Errorf("failed to rank products: %w", err)
			}
			analytics["top_products"] = top
		}
	}

	return analytics, nil
}

// Profile Management
func (s *AdminService) GetProfiles(filter AdminProfileFilter) ([]models.Profile, int64, error) {
	query := s.db.Model(&models.Profile{})

	if filter.UserType != nil {
		query = query.Where("user_type = ?", *filter.UserType)
	}
	if filter.Search != "" {
		searchTerm := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", searchTerm, searchTerm)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count profiles: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "email", "full_name", "user_type"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var profiles []models.Profile
	if err := query.Find(&profiles).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch profiles: %w", err)
	}

	return profiles, total, nil
}

// UpdateProfileRole changes a profile's user type. An admin cannot demote
// themselves.
func (s *AdminService) UpdateProfileRole(profileID uuid.UUID, userType models.UserType, adminID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.First(&profile, "id = ?", profileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if profile.ID == adminID && userType != models.UserTypeAdmin {
		return nil, ErrSelfDemotion
	}

	oldType := profile.UserType
	if err := s.db.Model(&profile).Update("user_type", userType).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile role: %w", err)
	}
	profile.UserType = userType

	logrus.WithFields(logrus.Fields{
		"profile_id": profileID,
		"admin_id":   adminID,
		"from":       oldType,
		"to":         userType,
	}).Info("Profile role updated")

	return &profile, nil
}

// Audit Trail
func (s *AdminService) GetAuditLogs(filter AdminAuditLogFilter) ([]models.AuditLog, int64, error) {
	query := s.db.Model(&models.AuditLog{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(action) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	allowedSortFields := []string{"created_at", "action", "resource_type", "status_code"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var logs []models.AuditLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	return logs, total, nil
}
