// internal/services/admin_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clayfire/storefront-api/internal/database"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

func TestDashboardStats(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewAdminService(db)

	mug := createTestProduct(t, db, "MUG-1", 100, 2)
	createTestProduct(t, db, "JAR-1", 50, 40)
	createTestOrder(t, db, mug, 1, models.OrderStatusPending, models.PaymentStatusPending, "")
	createTestOrder(t, db, mug, 3, models.OrderStatusConfirmed, models.PaymentStatusPaid, "")
	require.NoError(t, db.Create(&models.Profile{AuthID: "auth|c1", Email: "c1@example.com", UserType: models.UserTypeCustomer}).Error)

	stats, err := svc.GetDashboardStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalProducts)
	assert.Equal(t, int64(2), stats.ActiveProducts)
	assert.Equal(t, int64(1), stats.LowStockProducts)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, int64(1), stats.PendingOrders)
	assert.Equal(t, int64(1), stats.TotalCustomers)
	assert.Equal(t, 300.0, stats.TotalRevenue)
}

func TestAnalyticsTopProducts(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewAdminService(db)

	mug := createTestProduct(t, db, "MUG-1", 100, 20)
	jar := createTestProduct(t, db, "JAR-1", 50, 20)
	createTestOrder(t, db, mug, 1, models.OrderStatusConfirmed, models.PaymentStatusPaid, "")
	createTestOrder(t, db, jar, 4, models.OrderStatusConfirmed, models.PaymentStatusPaid, "")
	createTestOrder(t, db, mug, 9, models.OrderStatusPending, models.PaymentStatusPending, "")

	today := time.Now().UTC()
	analytics, err := svc.GetAnalytics(context.Background(), today.AddDate(0, 0, -1), today, []string{"orders", "paid_orders", "revenue", "top_products"})
	require.NoError(t, err)

	assert.Equal(t, int64(3), analytics["orders"])
	assert.Equal(t, int64(2), analytics["paid_orders"])
	assert.Equal(t, 300.0, analytics["revenue"])
	assert.NotNil(t, analytics["top_products"])
}

func TestUpdateProfileRole(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewAdminService(db)

	admin, err := database.SeedAdmin(db, "auth|admin", "admin@example.com", "Admin")
	require.NoError(t, err)
	customer, err := NewUserService(db).EnsureProfile("auth|c1", "c1@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.UserTypeCustomer, customer.UserType)

	_, err = svc.UpdateProfileRole(admin.ID, models.UserTypeCustomer, admin.ID)
	assert.ErrorIs(t, err, ErrSelfDemotion)

	promoted, err := svc.UpdateProfileRole(customer.ID, models.UserTypeBusiness, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserTypeBusiness, promoted.UserType)

	userType := models.UserTypeBusiness
	profiles, total, err := svc.GetProfiles(AdminProfileFilter{
		PaginationParams: utils.PaginationParams{Page: 1, Limit: 20, Order: "desc"},
		UserType:         &userType,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, profiles, 1)
	assert.Equal(t, customer.ID, profiles[0].ID)
}

func TestEnsureProfileSyncsEmail(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewUserService(db)

	created, err := svc.EnsureProfile("auth|c1", "old@example.com")
	require.NoError(t, err)

	again, err := svc.EnsureProfile("auth|c1", "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "new@example.com", again.Email)

	name := "  Meera Potter "
	updated, err := svc.UpdateProfile("auth|c1", &UpdateProfileRequest{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Meera Potter", updated.FullName)

	_, err = svc.UpdateProfile("auth|missing", &UpdateProfileRequest{FullName: &name})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
