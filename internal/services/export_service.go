// internal/services/export_service.go
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"

	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportSheet     = "Products"
	exportDayLayout = "2006-01-02"
)

// ExportFields lists the product fields a caller may select, in the order
// the admin UI offers them.
var ExportFields = []string{
	"id", "name", "slug", "sku", "description", "price", "compare_price",
	"inventory_quantity", "track_inventory", "allow_backorder", "low_stock_threshold",
	"category", "category_id", "tags", "is_active", "is_featured",
	"meta_title", "meta_description", "weight", "dimensions", "material", "color",
	"created_at", "updated_at",
}

type ExportService struct {
	db *gorm.DB
}

type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type ExportRequest struct {
	Format          string     `json:"format" validate:"omitempty,oneof=csv xlsx"`
	IncludeImages   bool       `json:"includeImages"`
	IncludeInactive bool       `json:"includeInactive"`
	DateRange       *DateRange `json:"dateRange,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	Fields          []string   `json:"fields"`
}

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{db: db}
}

func (s *ExportService) ExportProducts(ctx context.Context, req *ExportRequest) (*ExportFile, error) {
	if len(req.Fields) == 0 {
		return nil, ErrNoExportFields
	}

	format := strings.ToLower(req.Format)
	if format == "" {
		format = ExportFormatCSV
	}

	query, err := s.buildQuery(ctx, req)
	if err != nil {
		return nil, err
	}

	var products []models.Product
	if err := query.Preload("Category").Order("created_at ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	if len(products) == 0 {
		return nil, ErrNoProductsToExport
	}

	header := append([]string{}, req.Fields...)
	if req.IncludeImages {
		header = append(header, "image_urls")
	}

	records := make([][]string, 0, len(products)+1)
	records = append(records, header)
	for i := range products {
		record := make([]string, 0, len(header))
		for _, field := range req.Fields {
			record = append(record, exportValue(&products[i], field))
		}
		if req.IncludeImages {
			record = append(record, strings.Join(products[i].Images, ";"))
		}
		records = append(records, record)
	}

	date := time.Now().UTC().Format(exportDayLayout)
	file := &ExportFile{
		Filename: fmt.Sprintf("products-export-%s.%s", date, format),
		Rows:     len(products),
	}

	switch format {
	case ExportFormatXLSX:
		data, err := renderXLSX(records)
		if err != nil {
			return nil, err
		}
		file.ContentType = xlsxContentType
		file.Data = data
	default:
		file.ContentType = csvContentType
		file.Data = []byte(renderCSV(records))
	}

	logrus.WithFields(logrus.Fields{
		"format": format,
		"rows":   file.Rows,
		"fields": len(req.Fields),
	}).Info("Product export generated")

	return file, nil
}

func (s *ExportService) buildQuery(ctx context.Context, req *ExportRequest) (*gorm.DB, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})

	if !req.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}

	if req.DateRange != nil {
		if req.DateRange.Start != "" {
			start, err := time.Parse(exportDayLayout, req.DateRange.Start)
			if err != nil {
				return nil, fmt.Errorf("%w: start date %q", ErrInvalidExportFilter, req.DateRange.Start)
			}
			query = query.Where("created_at >= ?", start.UTC())
		}
		if req.DateRange.End != "" {
			end, err := time.Parse(exportDayLayout, req.DateRange.End)
			if err != nil {
				return nil, fmt.Errorf("%w: end date %q", ErrInvalidExportFilter, req.DateRange.End)
			}
			// The end day is inclusive.
			query = query.Where("created_at < ?", end.UTC().AddDate(0, 0, 1))
		}
	}

	if len(req.Categories) > 0 {
		ids := make([]uuid.UUID, 0, len(req.Categories))
		for _, raw := range req.Categories {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: category id %q", ErrInvalidExportFilter, raw)
			}
			ids = append(ids, id)
		}
		query = query.Where("category_id IN ?", ids)
	}

	return query, nil
}

func exportValue(p *models.Product, field string) string {
	specs := p.Specifications.Data()

	switch field {
	case "id":
		return p.ID.String()
	case "name":
		return p.Name
	case "slug":
		return p.Slug
	case "sku":
		return p.SKU
	case "description":
		return p.Description
	case "price":
		return formatAmount(p.Price)
	case "compare_price":
		if p.ComparePrice == nil {
			return ""
		}
		return formatAmount(*p.ComparePrice)
	case "inventory_quantity":
		return strconv.Itoa(p.InventoryQuantity)
	case "track_inventory":
		return strconv.FormatBool(p.TrackInventory)
	case "allow_backorder":
		return strconv.FormatBool(p.AllowBackorder)
	case "low_stock_threshold":
		return strconv.Itoa(p.LowStockThreshold)
	case "category":
		if p.Category == nil {
			return ""
		}
		return p.Category.Name
	case "category_id":
		if p.CategoryID == nil {
			return ""
		}
		return p.CategoryID.String()
	case "tags":
		return strings.Join(p.Tags, ";")
	case "is_active":
		return strconv.FormatBool(p.IsActive)
	case "is_featured":
		return strconv.FormatBool(p.IsFeatured)
	case "meta_title":
		return p.MetaTitle
	case "meta_description":
		return p.MetaDescription
	case "weight":
		return specs.Weight
	case "dimensions":
		return specs.Dimensions
	case "material":
		return specs.Material
	case "color":
		return specs.Color
	case "created_at":
		return p.CreatedAt.UTC().Format(exportDayLayout)
	case "updated_at":
		return p.UpdatedAt.UTC().Format(exportDayLayout)
	default:
		return ""
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(utils.RoundMoney(v), 'f', 2, 64)
}

func renderCSV(records [][]string) string {
	lines := make([]string, len(records))
	for i, record := range records {
		lines[i] = utils.JoinCSVRecord(record)
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderXLSX(records [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
