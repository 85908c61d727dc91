// internal/services/product_service.go
package services

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

type ProductService struct {
	db      *gorm.DB
	storage *StorageService
}

type CreateProductRequest struct {
	Name              string                        `json:"name" validate:"required,max=255"`
	Slug              string                        `json:"slug,omitempty" validate:"omitempty,slug,max=255"`
	SKU               string                        `json:"sku" validate:"required,sku,max=100"`
	Description       string                        `json:"description,omitempty"`
	Price             float64                       `json:"price" validate:"min=0"`
	ComparePrice      *float64                      `json:"compare_price,omitempty" validate:"omitempty,min=0"`
	InventoryQuantity int                           `json:"inventory_quantity" validate:"min=0"`
	TrackInventory    *bool                         `json:"track_inventory,omitempty"`
	AllowBackorder    bool                          `json:"allow_backorder,omitempty"`
	LowStockThreshold *int                          `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
	CategoryID        *uuid.UUID                    `json:"category_id,omitempty"`
	Tags              []string                      `json:"tags,omitempty"`
	Images            []string                      `json:"images,omitempty"`
	Specifications    *models.ProductSpecifications `json:"specifications,omitempty"`
	MetaTitle         string                        `json:"meta_title,omitempty" validate:"max=255"`
	MetaDescription   string                        `json:"meta_description,omitempty"`
	IsActive          *bool                         `json:"is_active,omitempty"`
	IsFeatured        bool                          `json:"is_featured,omitempty"`
}

type UpdateProductRequest struct {
	Name              *string                       `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Slug              *string                       `json:"slug,omitempty" validate:"omitempty,slug,max=255"`
	SKU               *string                       `json:"sku,omitempty" validate:"omitempty,sku,max=100"`
	Description       *string                       `json:"description,omitempty"`
	Price             *float64                      `json:"price,omitempty" validate:"omitempty,min=0"`
	ComparePrice      *float64                      `json:"compare_price,omitempty" validate:"omitempty,min=0"`
	InventoryQuantity *int                          `json:"inventory_quantity,omitempty" validate:"omitempty,min=0"`
	TrackInventory    *bool                         `json:"track_inventory,omitempty"`
	AllowBackorder    *bool                         `json:"allow_backorder,omitempty"`
	LowStockThreshold *int                          `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
	CategoryID        *uuid.UUID                    `json:"category_id,omitempty"`
	Tags              []string                      `json:"tags,omitempty"`
	Images            []string                      `json:"images,omitempty"`
	Specifications    *models.ProductSpecifications `json:"specifications,omitempty"`
	MetaTitle         *string                       `json:"meta_title,omitempty" validate:"omitempty,max=255"`
	MetaDescription   *string                       `json:"meta_description,omitempty"`
	IsActive          *bool                         `json:"is_active,omitempty"`
	IsFeatured        *bool                         `json:"is_featured,omitempty"`
}

type ProductSearchParams struct {
	utils.PaginationParams
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	IsActive   *bool      `json:"is_active,omitempty"`
	IsFeatured *bool      `json:"is_featured,omitempty"`
	LowStock   bool       `json:"low_stock,omitempty"`
}

// AdjustInventoryRequest either moves the stock by Delta or sets it to
// Quantity. Exactly one must be given.
type AdjustInventoryRequest struct {
	Delta    *int   `json:"delta,omitempty"`
	Quantity *int   `json:"quantity,omitempty" validate:"omitempty,min=0"`
	Reason   string `json:"reason,omitempty" validate:"max=255"`
}

type BulkOperationRequest struct {
	Action     string      `json:"action" validate:"required,oneof=activate deactivate feature unfeature delete"`
	ProductIDs []uuid.UUID `json:"product_ids" validate:"required,min=1,max=500"`
}

type BulkOperationFailure struct {
	ProductID uuid.UUID `json:"product_id"`
	Error     string    `json:"error"`
}

type BulkOperationResult struct {
	Action   string                 `json:"action"`
	Affected int                    `json:"affected"`
	Failed   []BulkOperationFailure `json:"failed"`
}

func NewProductService(db *gorm.DB, storage *StorageService) *ProductService {
	return &ProductService{
		db:      db,
		storage: storage,
	}
}

func (s *ProductService) CreateProduct(req *CreateProductRequest) (*models.Product, error) {
	if err := s.ensureSKUAvailable(req.SKU, uuid.Nil); err != nil {
		return nil, err
	}

	if req.CategoryID != nil {
		if err := s.ensureCategoryExists(*req.CategoryID); err != nil {
			return nil, err
		}
	}

	slug := req.Slug
	if slug == "" {
		var err error
		if slug, err = UniqueProductSlug(s.db, req.Name, req.SKU); err != nil {
			return nil, err
		}
	} else if err := s.ensureSlugAvailable(slug, uuid.Nil); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:              strings.TrimSpace(req.Name),
		Slug:              slug,
		SKU:               req.SKU,
		Description:       req.Description,
		Price:             utils.RoundMoney(req.Price),
		ComparePrice:      req.ComparePrice,
		InventoryQuantity: req.InventoryQuantity,
		TrackInventory:    true,
		AllowBackorder:    req.AllowBackorder,
		LowStockThreshold: 5,
		CategoryID:        req.CategoryID,
		Tags:              models.StringArray(req.Tags),
		Images:            models.StringArray(req.Images),
		MetaTitle:         req.MetaTitle,
		MetaDescription:   req.MetaDescription,
		IsActive:          true,
		IsFeatured:        req.IsFeatured,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.TrackInventory != nil {
		product.TrackInventory = *req.TrackInventory
	}
	if req.LowStockThreshold != nil {
		product.LowStockThreshold = *req.LowStockThreshold
	}
	if req.Specifications != nil {
		product.Specifications = datatypes.NewJSONType(*req.Specifications)
	}

	// gorm omits zero values for columns with defaults and Create reads the
	// default back, so requested zero values are written afterwards.
	active, tracked, threshold := product.IsActive, product.TrackInventory, product.LowStockThreshold
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		zeroed := map[string]interface{}{}
		if !active {
			zeroed["is_active"] = false
		}
		if !tracked {
			zeroed["track_inventory"] = false
		}
		if threshold == 0 {
			zeroed["low_stock_threshold"] = 0
		}
		if len(zeroed) == 0 {
			return nil
		}
		product.IsActive, product.TrackInventory, product.LowStockThreshold = active, tracked, threshold
		return tx.Model(product).Updates(zeroed).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSKUTaken
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"product_id": product.ID,
		"sku":        product.SKU,
	}).Info("Product created")

	return s.GetProduct(product.ID)
}

func (s *ProductService) GetProduct(id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

// GetProductBySlug returns an active product for the public catalog.
func (s *ProductService) GetProductBySlug(slug string) (*models.Product, error) {
	var product models.Product
	if err := s.db.Preload("Category").
		Where("slug = ? AND is_active = ?", slug, true).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

func (s *ProductService) UpdateProduct(id uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	// Prepare updates
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil && *req.Slug != product.Slug {
		if err := s.ensureSlugAvailable(*req.Slug, id); err != nil {
			return nil, err
		}
		updates["slug"] = *req.Slug
	}
	if req.SKU != nil && *req.SKU != product.SKU {
		if err := s.ensureSKUAvailable(*req.SKU, id); err != nil {
			return nil, err
		}
		updates["sku"] = *req.SKU
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		updates["price"] = utils.RoundMoney(*req.Price)
	}
	if req.ComparePrice != nil {
		updates["compare_price"] = *req.ComparePrice
	}
	if req.InventoryQuantity != nil {
		updates["inventory_quantity"] = *req.InventoryQuantity
	}
	if req.TrackInventory != nil {
		updates["track_inventory"] = *req.TrackInventory
	}
	if req.AllowBackorder != nil {
		updates["allow_backorder"] = *req.AllowBackorder
	}
	if req.LowStockThreshold != nil {
		updates["low_stock_threshold"] = *req.LowStockThreshold
	}
	if req.CategoryID != nil {
		if err := s.ensureCategoryExists(*req.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *req.CategoryID
	}
	if req.Tags != nil {
		updates["tags"] = models.StringArray(req.Tags)
	}
	if req.Images != nil {
		updates["images"] = models.StringArray(req.Images)
	}
	if req.Specifications != nil {
		updates["specifications"] = datatypes.NewJSONType(*req.Specifications)
	}
	if req.MetaTitle != nil {
		updates["meta_title"] = *req.MetaTitle
	}
	if req.MetaDescription != nil {
		updates["meta_description"] = *req.MetaDescription
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.IsFeatured != nil {
		updates["is_featured"] = *req.IsFeatured
	}

	if len(updates) > 0 {
		if err := s.db.Model(product).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrSKUTaken
			}
			return nil, fmt.Errorf("failed to update product: %w", err)
		}
	}

	return s.GetProduct(id)
}

// DeleteProduct removes a product that no order line references.
func (s *ProductService) DeleteProduct(id uuid.UUID) error {
	product, err := s.GetProduct(id)
	if err != nil {
		return err
	}

	var referenced int64
	if err := s.db.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&referenced).Error; err != nil {
		return fmt.Errorf("failed to check order items: %w", err)
	}
	if referenced > 0 {
		return ErrProductInUse
	}

	if err := s.db.Delete(&models.Product{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	for _, url := range product.Images {
		s.deleteImageObject(url)
	}

	logrus.WithField("product_id", id).Info("Product deleted")
	return nil
}

func (s *ProductService) SearchProducts(params ProductSearchParams) ([]models.Product, int64, error) {
	query := s.db.Model(&models.Product{})

	// Apply filters
	if params.CategoryID != nil {
		query = query.Where("category_id = ?", *params.CategoryID)
	}

	if params.IsActive != nil {
		query = query.Where("is_active = ?", *params.IsActive)
	}

	if params.IsFeatured != nil {
		query = query.Where("is_featured = ?", *params.IsFeatured)
	}

	if params.LowStock {
		query = query.Where("track_inventory = ? AND inventory_quantity <= low_stock_threshold", true)
	}

	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ? OR LOWER(description) LIKE ?", searchTerm, searchTerm, searchTerm)
	}

	// Get total count
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "name", "price", "inventory_quantity", "sku"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var products []models.Product
	if err := query.Preload("Category").Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	return products, total, nil
}

func (s *ProductService) AdjustInventory(id uuid.UUID, req *AdjustInventoryRequest) (*models.Product, error) {
	if (req.Delta == nil) == (req.Quantity == nil) {
		return nil, ErrInvalidAdjustment
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		next := product.InventoryQuantity
		if req.Delta != nil {
			next += *req.Delta
		} else {
			next = *req.Quantity
		}
		if next < 0 {
			return ErrInsufficientInventory
		}

		if err := tx.Model(&product).Update("inventory_quantity", next).Error; err != nil {
			return fmt.Errorf("failed to update inventory: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"product_id": id,
			"from":       product.InventoryQuantity,
			"to":         next,
			"reason":     req.Reason,
		}).Info("Inventory adjusted")
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetProduct(id)
}

// BulkOperation applies one action to many products. Deletes go through the
// same order reference guard as DeleteProduct; products that fail are
// reported and the rest proceed.
func (s *ProductService) BulkOperation(req *BulkOperationRequest) (*BulkOperationResult, error) {
	result := &BulkOperationResult{Action: req.Action, Failed: []BulkOperationFailure{}}

	if req.Action == "delete" {
		for _, id := range req.ProductIDs {
			if err := s.DeleteProduct(id); err != nil {
				result.Failed = append(result.Failed, BulkOperationFailure{ProductID: id, Error: err.Error()})
				continue
			}
			result.Affected++
		}
		return result, nil
	}

	var column string
	var value bool
	switch req.Action {
	case "activate":
		column, value = "is_active", true
	case "deactivate":
		column, value = "is_active", false
	case "feature":
		column, value = "is_featured", true
	case "unfeature":
		column, value = "is_featured", false
	default:
		return nil, fmt.Errorf("unknown bulk action %q", req.Action)
	}

	res := s.db.Model(&models.Product{}).Where("id IN ?", req.ProductIDs).Update(column, value)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to apply bulk %s: %w", req.Action, res.Error)
	}
	result.Affected = int(res.RowsAffected)

	logrus.WithFields(logrus.Fields{
		"action":   req.Action,
		"affected": result.Affected,
	}).Info("Bulk product operation applied")

	return result, nil
}

// AddProductImage uploads an image and appends its URL to the product.
func (s *ProductService) AddProductImage(id uuid.UUID, file multipart.File, header *multipart.FileHeader) (*models.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	if err := s.storage.ValidateImage(file); err != nil {
		return nil, err
	}

	upload, err := s.storage.UploadFile(file, header, s.storage.GetDefaultUploadOptions("products"))
	if err != nil {
		return nil, err
	}

	images := append(models.StringArray{}, product.Images...)
	images = append(images, upload.URL)
	if err := s.db.Model(product).Update("images", images).Error; err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	return s.GetProduct(id)
}

// RemoveProductImage detaches url from the product and deletes the stored
// object when it lives in our bucket.
func (s *ProductService) RemoveProductImage(id uuid.UUID, url string) (*models.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	images := make(models.StringArray, 0, len(product.Images))
	found := false
	for _, image := range product.Images {
		if image == url {
			found = true
			continue
		}
		images = append(images, image)
	}
	if !found {
		return product, nil
	}

	if err := s.db.Model(product).Update("images", images).Error; err != nil {
		return nil, fmt.Errorf("failed to remove image: %w", err)
	}
	s.deleteImageObject(url)

	return s.GetProduct(id)
}

func (s *ProductService) deleteImageObject(url string) {
	if s.storage == nil {
		return
	}
	if key, ok := s.storage.KeyFromURL(url); ok {
		if err := s.storage.DeleteFile(key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Failed to delete product image")
		}
	}
}

func (s *ProductService) ensureSKUAvailable(sku string, exceptID uuid.UUID) error {
	var count int64
	if err := s.db.Model(&models.Product{}).Where("sku = ? AND id <> ?", sku, exceptID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check sku: %w", err)
	}
	if count > 0 {
		return ErrSKUTaken
	}
	return nil
}

func (s *ProductService) ensureSlugAvailable(slug string, exceptID uuid.UUID) error {
	var count int64
	if err := s.db.Model(&models.Product{}).Where("slug = ? AND id <> ?", slug, exceptID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}
	if count > 0 {
		return ErrSlugTaken
	}
	return nil
}

func (s *ProductService) ensureCategoryExists(id uuid.UUID) error {
	var count int64
	if err := s.db.Model(&models.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if count == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// UniqueProductSlug derives a slug from name. When it is taken the slugified
// sku is appended, and failing that a short random suffix.
func UniqueProductSlug(db *gorm.DB, name, sku string) (string, error) {
	base := utils.Slugify(name)
	if base == "" {
		base = utils.Slugify(sku)
	}

	candidates := []string{base}
	if skuPart := utils.Slugify(sku); skuPart != "" && skuPart != base {
		candidates = append(candidates, base+"-"+skuPart)
	}

	for _, candidate := range candidates {
		var count int64
		if err := db.Model(&models.Product{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
	}

	return candidates[len(candidates)-1] + "-" + uuid.New().String()[:6], nil
}
