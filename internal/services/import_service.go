// internal/services/import_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/config"
	"github.com/clayfire/storefront-api/internal/database"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

// DefaultImportMaxRows caps data rows when the configured limit is unset.
const DefaultImportMaxRows = 1000

// Columns understood by the product importer. Anything else in the header is
// ignored.
var importColumns = map[string]bool{
	"name":             true,
	"description":      true,
	"price":            true,
	"sale_price":       true,
	"sku":              true,
	"category":         true,
	"stock_quantity":   true,
	"weight":           true,
	"dimensions":       true,
	"material":         true,
	"color":            true,
	"is_featured":      true,
	"is_active":        true,
	"tags":             true,
	"meta_title":       true,
	"meta_description": true,
}

type ImportService struct {
	db         *gorm.DB
	config     *config.Config
	categories *CategoryService
}

// ImportRowError describes why one data row was not imported. Row is the
// line number in the file, counting the header as line 1.
type ImportRowError struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Value string `json:"value"`
	Error string `json:"error"`
}

type ImportResult struct {
	Success    int              `json:"success"`
	Failed     int              `json:"failed"`
	Duplicates int              `json:"duplicates"`
	Errors     []ImportRowError `json:"errors"`
}

type importRow struct {
	line   int
	values map[string]string
}

func (r importRow) get(field string) string {
	return r.values[field]
}

func NewImportService(db *gorm.DB, config *config.Config, categories *CategoryService) *ImportService {
	return &ImportService{
		db:         db,
		config:     config,
		categories: categories,
	}
}

// MaxRows is the data-row limit in force for uploads.
func (s *ImportService) MaxRows() int {
	if s.config.Import.MaxRows > 0 {
		return s.config.Import.MaxRows
	}
	return DefaultImportMaxRows
}

// ImportProducts parses a product CSV and inserts every valid row whose SKU
// is not already taken. Rows are inserted one by one; a failing row is
// recorded and the import continues.
func (s *ImportService) ImportProducts(ctx context.Context, filename string, content []byte) (*ImportResult, error) {
	if strings.ToLower(filepath.Ext(filename)) != ".csv" {
		return nil, ErrImportNotCSV
	}

	lines := utils.SplitCSVLines(string(content))
	if len(lines) < 2 {
		return nil, ErrImportTooFewRows
	}
	if maxRows := s.MaxRows(); len(lines)-1 > maxRows {
		return nil, fmt.Errorf("%w: %d rows, maximum is %d", ErrImportTooManyRows, len(lines)-1, maxRows)
	}

	header := parseImportHeader(lines[0])
	rows := make([]importRow, 0, len(lines)-1)
	for i, line := range lines[1:] {
		fields := utils.SplitCSVLine(line)
		values := make(map[string]string, len(header))
		for col, name := range header {
			if name != "" && col < len(fields) {
				values[name] = fields[col]
			}
		}
		rows = append(rows, importRow{line: i + 2, values: values})
	}

	existing, err := s.existingSKUs(ctx, rows)
	if err != nil {
		return nil, err
	}

	categoryIDs, err := s.categories.CategoryLookup()
	if err != nil {
		return nil, err
	}

	_, hasActiveColumn := indexOf(header, "is_active")

	result := &ImportResult{Errors: []ImportRowError{}}
	imported := make(map[string]bool)

	for _, row := range rows {
		if rowErrors := validateImportRow(row); len(rowErrors) > 0 {
			result.Failed++
			result.Errors = append(result.Errors, rowErrors...)
			continue
		}

		sku := row.get("sku")
		if existing[sku] || imported[sku] {
			result.Duplicates++
			result.Failed++
			result.Errors = append(result.Errors, ImportRowError{
				Row:   row.line,
				Field: "sku",
				Value: sku,
				Error: "Duplicate SKU",
			})
			continue
		}

		product := mapImportRow(row, categoryIDs, hasActiveColumn)
		if err := s.insertProduct(ctx, product); err != nil {
			result.Failed++
			rowErr := ImportRowError{Row: row.line, Field: "", Value: sku, Error: err.Error()}
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				result.Duplicates++
				rowErr.Field = "sku"
				rowErr.Error = "Duplicate SKU"
			}
			result.Errors = append(result.Errors, rowErr)
			logrus.WithError(err).WithFields(logrus.Fields{
				"row": row.line,
				"sku": sku,
			}).Warn("Product import row failed")
			continue
		}

		imported[sku] = true
		result.Success++
	}

	logrus.WithFields(logrus.Fields{
		"file":       filename,
		"rows":       len(rows),
		"success":    result.Success,
		"failed":     result.Failed,
		"duplicates": result.Duplicates,
	}).Info("Product import finished")

	return result, nil
}

func (s *ImportService) existingSKUs(ctx context.Context, rows []importRow) (map[string]bool, error) {
	skus := make([]string, 0, len(rows))
	for _, row := range rows {
		if sku := row.get("sku"); sku != "" {
			skus = append(skus, sku)
		}
	}

	existing := make(map[string]bool)
	if len(skus) == 0 {
		return existing, nil
	}

	var found []string
	if err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("sku IN ?", skus).
		Pluck("sku", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing SKUs: %w", err)
	}

	for _, sku := range found {
		existing[sku] = true
	}
	return existing, nil
}

func (s *ImportService) insertProduct(ctx context.Context, product *models.Product) error {
	slug, err := UniqueProductSlug(s.db.WithContext(ctx), product.Name, product.SKU)
	if err != nil {
		return err
	}
	product.Slug = slug

	// is_active defaults to true in the database and Create reads it back,
	// so the requested value is kept aside and written after the insert.
	active := product.IsActive
	return database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		if !active {
			product.IsActive = false
			return tx.Model(product).Update("is_active", false).Error
		}
		return nil
	})
}

func parseImportHeader(line string) []string {
	columns := utils.SplitCSVLine(line)
	header := make([]string, len(columns))
	for i, column := range columns {
		name := strings.ToLower(strings.TrimSpace(column))
		if importColumns[name] {
			header[i] = name
		}
	}
	return header
}

// validateImportRow checks name, price and sku in that order and returns one
// error per failing field.
func validateImportRow(row importRow) []ImportRowError {
	var rowErrors []ImportRowError

	if strings.TrimSpace(row.get("name")) == "" {
		rowErrors = append(rowErrors, ImportRowError{
			Row:   row.line,
			Field: "name",
			Value: row.get("name"),
			Error: "Name is required",
		})
	}

	price := row.get("price")
	if value, err := strconv.ParseFloat(price, 64); err != nil || value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		rowErrors = append(rowErrors, ImportRowError{
			Row:   row.line,
			Field: "price",
			Value: price,
			Error: "Price must be a non-negative number",
		})
	}

	sku := row.get("sku")
	if !utils.IsValidSKU(sku) {
		rowErrors = append(rowErrors, ImportRowError{
			Row:   row.line,
			Field: "sku",
			Value: sku,
			Error: "SKU may contain only letters, numbers, underscores and hyphens",
		})
	}

	return rowErrors
}

// mapImportRow builds the product for a validated row. Optional numeric
// columns that do not parse become 0 rather than failing the row.
func mapImportRow(row importRow, categoryIDs map[string]uuid.UUID, hasActiveColumn bool) *models.Product {
	price, _ := strconv.ParseFloat(row.get("price"), 64)

	product := &models.Product{
		Name:              strings.TrimSpace(row.get("name")),
		SKU:               row.get("sku"),
		Description:       row.get("description"),
		Price:             utils.RoundMoney(price),
		InventoryQuantity: parseIntOrZero(row.get("stock_quantity")),
		TrackInventory:    true,
		LowStockThreshold: 5,
		Tags:              splitTags(row.get("tags")),
		MetaTitle:         row.get("meta_title"),
		MetaDescription:   row.get("meta_description"),
		IsActive:          true,
		IsFeatured:        parseImportBool(row.get("is_featured")),
	}

	if hasActiveColumn {
		product.IsActive = parseImportBool(row.get("is_active"))
	}

	if salePrice := row.get("sale_price"); salePrice != "" {
		comparePrice := utils.RoundMoney(parseFloatOrZero(salePrice))
		product.ComparePrice = &comparePrice
	}

	if category := strings.ToLower(strings.TrimSpace(row.get("category"))); category != "" {
		if id, ok := categoryIDs[category]; ok {
			product.CategoryID = &id
		}
	}

	specs := models.ProductSpecifications{
		Weight:     row.get("weight"),
		Dimensions: row.get("dimensions"),
		Material:   row.get("material"),
		Color:      row.get("color"),
	}
	product.Specifications = datatypes.NewJSONType(specs)

	return product
}

func parseImportBool(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

func parseFloatOrZero(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseIntOrZero(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return int(parseFloatOrZero(value))
	}
	return n
}

func splitTags(value string) models.StringArray {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ';' || r == ','
	})

	tags := make(models.StringArray, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func indexOf(values []string, target string) (int, bool) {
	for i, v := range values {
		if v == target {
			return i, true
		}
	}
	return -1, false
}
