// internal/services/export_service_test.go
package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/database"
	"github.com/clayfire/storefront-api/internal/models"
)

func seedExportProducts(t *testing.T, db *gorm.DB) []*models.Product {
	t.Helper()

	days := []time.Time{
		time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC),
	}
	names := []string{"Clay, Bowl", "Glazed \"Moon\" Jar", "Serving Plate"}

	products := make([]*models.Product, 0, len(days))
	for i, day := range days {
		product := &models.Product{
			Name:              names[i],
			Slug:              strings.ToLower(strings.ReplaceAll(names[i], " ", "-")),
			SKU:               []string{"BOWL-1", "JAR-1", "PLATE-1"}[i],
			Price:             float64(10 * (i + 1)),
			InventoryQuantity: i,
			TrackInventory:    true,
			IsActive:          true,
			Tags:              models.StringArray{"handmade", "clay"},
			Images:            models.StringArray{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
		}
		product.CreatedAt = day
		product.UpdatedAt = day
		require.NoError(t, db.Create(product).Error)
		products = append(products, product)
	}
	return products
}

func TestExportProductsFiltersByInclusiveDateRange(t *testing.T) {
	db := database.NewTestDB(t)
	seedExportProducts(t, db)
	svc := NewExportService(db)

	file, err := svc.ExportProducts(context.Background(), &ExportRequest{
		Fields:    []string{"sku", "created_at"},
		DateRange: &DateRange{Start: "2024-03-02", End: "2024-03-02"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, file.Rows)
	assert.Equal(t, "sku,created_at\nJAR-1,2024-03-02\n", string(file.Data))
	assert.Equal(t, csvContentType, file.ContentType)
	assert.True(t, strings.HasPrefix(file.Filename, "products-export-"))
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
}

func TestExportProductsCSVEscapesValues(t *testing.T) {
	db := database.NewTestDB(t)
	seedExportProducts(t, db)
	svc := NewExportService(db)

	file, err := svc.ExportProducts(context.Background(), &ExportRequest{
		Fields:        []string{"name", "price", "tags", "no_such_field"},
		IncludeImages: true,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(file.Data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "name,price,tags,no_such_field,image_urls", lines[0])
	assert.Equal(t, `"Clay, Bowl",10.00,handmade;clay,,https://cdn.example.com/a.jpg;https://cdn.example.com/b.jpg`, lines[1])
	assert.Equal(t, `"Glazed ""Moon"" Jar",20.00,handmade;clay,,https://cdn.example.com/a.jpg;https://cdn.example.com/b.jpg`, lines[2])
}

func TestExportProductsSkipsInactiveUnlessAsked(t *testing.T) {
	db := database.NewTestDB(t)
	products := seedExportProducts(t, db)
	require.NoError(t, db.Model(products[0]).Update("is_active", false).Error)
	svc := NewExportService(db)

	file, err := svc.ExportProducts(context.Background(), &ExportRequest{Fields: []string{"sku"}})
	require.NoError(t, err)
	assert.Equal(t, 2, file.Rows)

	file, err = svc.ExportProducts(context.Background(), &ExportRequest{Fields: []string{"sku"}, IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, 3, file.Rows)
}

func TestExportProductsFiltersByCategory(t *testing.T) {
	db := database.NewTestDB(t)
	products := seedExportProducts(t, db)

	category, err := NewCategoryService(db).CreateCategory(&CreateCategoryRequest{Name: "Tableware"})
	require.NoError(t, err)
	require.NoError(t, db.Model(products[2]).Update("category_id", category.ID).Error)

	file, err := NewExportService(db).ExportProducts(context.Background(), &ExportRequest{
		Fields:     []string{"sku", "category"},
		Categories: []string{category.ID.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, "sku,category\nPLATE-1,Tableware\n", string(file.Data))
}

func TestExportProductsXLSX(t *testing.T) {
	db := database.NewTestDB(t)
	seedExportProducts(t, db)

	file, err := NewExportService(db).ExportProducts(context.Background(), &ExportRequest{
		Format: "xlsx",
		Fields: []string{"name", "sku", "inventory_quantity"},
	})
	require.NoError(t, err)
	assert.Equal(t, xlsxContentType, file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".xlsx"))

	book, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Products")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"name", "sku", "inventory_quantity"}, rows[0])
	assert.Equal(t, []string{"Clay, Bowl", "BOWL-1", "0"}, rows[1])
}

func TestExportProductsErrors(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewExportService(db)
	ctx := context.Background()

	_, err := svc.ExportProducts(ctx, &ExportRequest{})
	assert.ErrorIs(t, err, ErrNoExportFields)

	_, err = svc.ExportProducts(ctx, &ExportRequest{Fields: []string{"sku"}})
	assert.ErrorIs(t, err, ErrNoProductsToExport)

	_, err = svc.ExportProducts(ctx, &ExportRequest{
		Fields:    []string{"sku"},
		DateRange: &DateRange{Start: "03/01/2024"},
	})
	assert.ErrorIs(t, err, ErrInvalidExportFilter)

	_, err = svc.ExportProducts(ctx, &ExportRequest{
		Fields:     []string{"sku"},
		Categories: []string{"not-a-uuid"},
	})
	assert.ErrorIs(t, err, ErrInvalidExportFilter)

	seedExportProducts(t, db)
	_, err = svc.ExportProducts(ctx, &ExportRequest{
		Fields:    []string{"sku"},
		DateRange: &DateRange{Start: "2025-01-01"},
	})
	assert.ErrorIs(t, err, ErrNoProductsToExport)
}
