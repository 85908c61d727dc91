// internal/services/import_service_test.go
package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clayfire/storefront-api/internal/database"
	"github.com/clayfire/storefront-api/internal/models"
)

func newTestImportService(t *testing.T) (*ImportService, *CategoryService) {
	db := database.NewTestDB(t)
	categories := NewCategoryService(db)
	return NewImportService(db, testConfig(), categories), categories
}

func csvFile(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func TestImportProductsCountsDuplicateSKUInFile(t *testing.T) {
	svc, _ := newTestImportService(t)

	result, err := svc.ImportProducts(context.Background(), "products.csv", csvFile(
		"name,price,sku",
		"Blue Mug,10,MUG-1",
		"Blue Mug Again,12,MUG-1",
	))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Duplicates)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, "sku", result.Errors[0].Field)
	assert.Equal(t, "MUG-1", result.Errors[0].Value)

	var count int64
	require.NoError(t, svc.db.Model(&models.Product{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestImportProductsTreatsExistingSKUAsDuplicate(t *testing.T) {
	svc, _ := newTestImportService(t)
	createTestProduct(t, svc.db, "VASE-9", 40, 3)

	result, err := svc.ImportProducts(context.Background(), "products.csv", csvFile(
		"name,price,sku",
		"Tall Vase,45,VASE-9",
	))
	require.NoError(t, err)

	assert.Equal(t, 0, result.Success)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Duplicates)
}

func TestImportProductsReportsEveryInvalidField(t *testing.T) {
	svc, _ := newTestImportService(t)

	result, err := svc.ImportProducts(context.Background(), "products.csv", csvFile(
		"name,price,sku",
		",abc,bad sku!",
		"Plate,-1,PLATE-1",
		"Bowl,12.5,BOWL-1",
	))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 0, result.Duplicates)
	require.Len(t, result.Errors, 4)

	fields := []string{}
	for _, e := range result.Errors[:3] {
		assert.Equal(t, 2, e.Row)
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"name", "price", "sku"}, fields)

	assert.Equal(t, 3, result.Errors[3].Row)
	assert.Equal(t, "price", result.Errors[3].Field)
}

func TestImportProductsMapsColumns(t *testing.T) {
	svc, categories := newTestImportService(t)
	category, err := categories.CreateCategory(&CreateCategoryRequest{Name: "Planters"})
	require.NoError(t, err)

	result, err := svc.ImportProducts(context.Background(), "Catalog.CSV", csvFile(
		"Name,PRICE,Sku,Stock_Quantity,Category,Tags,Is_Active,Sale_Price,Material,unknown",
		`"Hanging Planter, Large",24.999,PLANT-1,abc,planters,"garden;hanging",false,30,terracotta,ignored`,
	))
	require.NoError(t, err)
	require.Equal(t, 1, result.Success, result.Errors)

	var product models.Product
	require.NoError(t, svc.db.First(&product, "sku = ?", "PLANT-1").Error)

	assert.Equal(t, "Hanging Planter, Large", product.Name)
	assert.Equal(t, "hanging-planter-large", product.Slug)
	assert.Equal(t, 25.0, product.Price)
	assert.Equal(t, 0, product.InventoryQuantity)
	assert.False(t, product.IsActive)
	require.NotNil(t, product.CategoryID)
	assert.Equal(t, category.ID, *product.CategoryID)
	assert.Equal(t, models.StringArray{"garden", "hanging"}, product.Tags)
	require.NotNil(t, product.ComparePrice)
	assert.Equal(t, 30.0, *product.ComparePrice)
	assert.Equal(t, "terracotta", product.Specifications.Data().Material)
}

func TestImportProductsStoresInactiveRows(t *testing.T) {
	svc, _ := newTestImportService(t)

	result, err := svc.ImportProducts(context.Background(), "products.csv", csvFile(
		"name,price,sku,is_active",
		"Bowl,10,B-1,false",
		"Cup,8,C-1,TRUE",
		"Jug,12,J-1,yes",
	))
	require.NoError(t, err)
	require.Equal(t, 3, result.Success, result.Errors)

	stored := map[string]bool{}
	var products []models.Product
	require.NoError(t, svc.db.Find(&products).Error)
	for _, p := range products {
		stored[p.SKU] = p.IsActive
	}
	assert.Equal(t, map[string]bool{"B-1": false, "C-1": true, "J-1": false}, stored)
}

func TestImportProductsDefaultsToActive(t *testing.T) {
	svc, _ := newTestImportService(t)

	result, err := svc.ImportProducts(context.Background(), "products.csv", csvFile(
		"name,price,sku,stock_quantity",
		"Teapot,55,TEA-1,7",
	))
	require.NoError(t, err)
	require.Equal(t, 1, result.Success)

	var product models.Product
	require.NoError(t, svc.db.First(&product, "sku = ?", "TEA-1").Error)
	assert.True(t, product.IsActive)
	assert.True(t, product.TrackInventory)
	assert.Equal(t, 7, product.InventoryQuantity)
}

func TestImportProductsDisambiguatesSlugs(t *testing.T) {
	svc, _ := newTestImportService(t)

	result, err := svc.ImportProducts(context.Background(), "products.csv", csvFile(
		"name,price,sku",
		"Blue Mug,10,MUG-1",
		"Blue Mug,11,MUG-2",
	))
	require.NoError(t, err)
	require.Equal(t, 2, result.Success)

	var slugs []string
	require.NoError(t, svc.db.Model(&models.Product{}).Order("sku").Pluck("slug", &slugs).Error)
	assert.Equal(t, []string{"blue-mug", "blue-mug-mug-2"}, slugs)
}

func TestImportProductsRejectsBadFiles(t *testing.T) {
	svc, _ := newTestImportService(t)
	ctx := context.Background()

	_, err := svc.ImportProducts(ctx, "products.txt", csvFile("name,price,sku", "Mug,1,M-1"))
	assert.ErrorIs(t, err, ErrImportNotCSV)

	_, err = svc.ImportProducts(ctx, "products.csv", csvFile("name,price,sku"))
	assert.ErrorIs(t, err, ErrImportTooFewRows)

	_, err = svc.ImportProducts(ctx, "products.csv", []byte("\n\n"))
	assert.ErrorIs(t, err, ErrImportTooFewRows)

	svc.config.Import.MaxRows = 2
	_, err = svc.ImportProducts(ctx, "products.csv", csvFile(
		"name,price,sku",
		"A,1,A-1",
		"B,1,B-1",
		"C,1,C-1",
	))
	assert.ErrorIs(t, err, ErrImportTooManyRows)

	var count int64
	require.NoError(t, svc.db.Model(&models.Product{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestImportProductsKeepsRowCapWhenUnset(t *testing.T) {
	svc, _ := newTestImportService(t)

	lines := []string{"name,price,sku"}
	for i := 0; i <= DefaultImportMaxRows; i++ {
		lines = append(lines, fmt.Sprintf("Cup %d,5,CUP-%d", i, i))
	}

	for _, limit := range []int{0, -1} {
		svc.config.Import.MaxRows = limit
		assert.Equal(t, DefaultImportMaxRows, svc.MaxRows())

		_, err := svc.ImportProducts(context.Background(), "products.csv", csvFile(lines...))
		assert.ErrorIs(t, err, ErrImportTooManyRows)
	}
}
