// internal/services/catalog_test.go
package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clayfire/storefront-api/internal/database"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

func TestDeleteCategoryInUse(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewCategoryService(db)

	parent, err := svc.CreateCategory(&CreateCategoryRequest{Name: "Planters"})
	require.NoError(t, err)
	child, err := svc.CreateCategory(&CreateCategoryRequest{Name: "Hanging Planters", ParentID: &parent.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteCategory(parent.ID), ErrCategoryInUse)

	product := createTestProduct(t, db, "PLANT-1", 20, 4)
	require.NoError(t, db.Model(product).Update("category_id", child.ID).Error)
	assert.ErrorIs(t, svc.DeleteCategory(child.ID), ErrCategoryInUse)

	stored, err := svc.GetCategory(child.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ProductCount)

	require.NoError(t, db.Model(product).Update("category_id", nil).Error)
	require.NoError(t, svc.DeleteCategory(child.ID))
	require.NoError(t, svc.DeleteCategory(parent.ID))

	_, err = svc.GetCategory(parent.ID)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCreateCategorySlugs(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewCategoryService(db)

	category, err := svc.CreateCategory(&CreateCategoryRequest{Name: "Serving Bowls"})
	require.NoError(t, err)
	assert.Equal(t, "serving-bowls", category.Slug)
	assert.True(t, category.IsActive)

	_, err = svc.CreateCategory(&CreateCategoryRequest{Name: "Serving   Bowls!"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = svc.CreateCategory(&CreateCategoryRequest{Name: "???"})
	assert.ErrorIs(t, err, ErrInvalidSlug)

	inactive := false
	hidden, err := svc.CreateCategory(&CreateCategoryRequest{Name: "Seconds", IsActive: &inactive})
	require.NoError(t, err)

	stored, err := svc.GetCategory(hidden.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestUpdateCategoryRejectsCycles(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewCategoryService(db)

	root, err := svc.CreateCategory(&CreateCategoryRequest{Name: "Kitchen"})
	require.NoError(t, err)
	mid, err := svc.CreateCategory(&CreateCategoryRequest{Name: "Mugs", ParentID: &root.ID})
	require.NoError(t, err)
	leaf, err := svc.CreateCategory(&CreateCategoryRequest{Name: "Espresso Cups", ParentID: &mid.ID})
	require.NoError(t, err)

	_, err = svc.UpdateCategory(root.ID, &UpdateCategoryRequest{ParentID: &leaf.ID})
	assert.ErrorIs(t, err, ErrCategoryCycle)

	_, err = svc.UpdateCategory(root.ID, &UpdateCategoryRequest{ParentID: &root.ID})
	assert.ErrorIs(t, err, ErrCategoryCycle)

	moved, err := svc.UpdateCategory(leaf.ID, &UpdateCategoryRequest{ParentID: &root.ID})
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, root.ID, *moved.ParentID)

	detached, err := svc.UpdateCategory(leaf.ID, &UpdateCategoryRequest{ClearParent: true})
	require.NoError(t, err)
	assert.Nil(t, detached.ParentID)
}

func TestListCategoriesBuildsTree(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewCategoryService(db)

	root, err := svc.CreateCategory(&CreateCategoryRequest{Name: "Kitchen"})
	require.NoError(t, err)
	_, err = svc.CreateCategory(&CreateCategoryRequest{Name: "Mugs", ParentID: &root.ID})
	require.NoError(t, err)
	_, err = svc.CreateCategory(&CreateCategoryRequest{Name: "Garden"})
	require.NoError(t, err)

	tree, err := svc.ListCategories(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, tree, 2)

	var kitchen *models.Category
	for i := range tree {
		if tree[i].ID == root.ID {
			kitchen = &tree[i]
		}
	}
	require.NotNil(t, kitchen)
	require.Len(t, kitchen.Children, 1)
	assert.Equal(t, "Mugs", kitchen.Children[0].Name)
}

func TestCreateProductRules(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewProductService(db, nil)

	inactive := false
	untracked := false
	product, err := svc.CreateProduct(&CreateProductRequest{
		Name:           "Moon Jar",
		SKU:            "JAR-1",
		Price:          120.456,
		IsActive:       &inactive,
		TrackInventory: &untracked,
	})
	require.NoError(t, err)
	assert.Equal(t, "moon-jar", product.Slug)
	assert.Equal(t, 120.46, product.Price)
	assert.False(t, product.IsActive)
	assert.False(t, product.TrackInventory)

	stored, err := svc.GetProduct(product.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.TrackInventory)
	assert.Equal(t, 5, stored.LowStockThreshold)

	noAlerts := 0
	quiet, err := svc.CreateProduct(&CreateProductRequest{Name: "Quiet Jar", SKU: "JAR-9", Price: 3, LowStockThreshold: &noAlerts})
	require.NoError(t, err)
	stored, err = svc.GetProduct(quiet.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.True(t, stored.TrackInventory)
	assert.Zero(t, stored.LowStockThreshold)

	_, err = svc.CreateProduct(&CreateProductRequest{Name: "Another Jar", SKU: "JAR-1", Price: 1})
	assert.ErrorIs(t, err, ErrSKUTaken)

	_, err = svc.CreateProduct(&CreateProductRequest{Name: "Another Jar", SKU: "JAR-2", Slug: "moon-jar", Price: 1})
	assert.ErrorIs(t, err, ErrSlugTaken)

	missing := uuid.New()
	_, err = svc.CreateProduct(&CreateProductRequest{Name: "Lost Jar", SKU: "JAR-3", CategoryID: &missing})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestDeleteProductReferencedByOrder(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewProductService(db, nil)

	sold := createTestProduct(t, db, "MUG-1", 10, 5)
	unsold := createTestProduct(t, db, "MUG-2", 10, 5)
	createTestOrder(t, db, sold, 1, models.OrderStatusPending, models.PaymentStatusPending, "")

	assert.ErrorIs(t, svc.DeleteProduct(sold.ID), ErrProductInUse)
	require.NoError(t, svc.DeleteProduct(unsold.ID))

	_, err := svc.GetProduct(unsold.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)

	result, err := svc.BulkOperation(&BulkOperationRequest{Action: "delete", ProductIDs: []uuid.UUID{sold.ID}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Affected)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, sold.ID, result.Failed[0].ProductID)
}

func TestAdjustInventory(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewProductService(db, nil)
	mug := createTestProduct(t, db, "MUG-1", 10, 5)

	delta := -3
	updated, err := svc.AdjustInventory(mug.ID, &AdjustInventoryRequest{Delta: &delta, Reason: "breakage"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.InventoryQuantity)

	delta = -3
	_, err = svc.AdjustInventory(mug.ID, &AdjustInventoryRequest{Delta: &delta})
	assert.ErrorIs(t, err, ErrInsufficientInventory)

	quantity := 40
	updated, err = svc.AdjustInventory(mug.ID, &AdjustInventoryRequest{Quantity: &quantity})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.InventoryQuantity)

	_, err = svc.AdjustInventory(mug.ID, &AdjustInventoryRequest{})
	assert.ErrorIs(t, err, ErrInvalidAdjustment)
}

func TestBulkOperationToggles(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewProductService(db, nil)
	a := createTestProduct(t, db, "A-1", 10, 5)
	b := createTestProduct(t, db, "B-1", 10, 5)

	result, err := svc.BulkOperation(&BulkOperationRequest{Action: "deactivate", ProductIDs: []uuid.UUID{a.ID, b.ID}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Affected)
	assert.False(t, reloadProduct(t, db, a).IsActive)

	active := true
	products, total, err := svc.SearchProducts(ProductSearchParams{
		PaginationParams: utils.PaginationParams{Page: 1, Limit: 20, Order: "desc"},
		IsActive:         &active,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, products)
}
