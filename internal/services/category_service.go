// internal/services/category_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

type CategoryService struct {
	db *gorm.DB
}

type CreateCategoryRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Slug        string     `json:"slug,omitempty" validate:"omitempty,slug,max=120"`
	Description string     `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	SortOrder   int        `json:"sort_order,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

type UpdateCategoryRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Slug        *string    `json:"slug,omitempty" validate:"omitempty,slug,max=120"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	ClearParent bool       `json:"clear_parent,omitempty"`
	SortOrder   *int       `json:"sort_order,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

// ListCategories returns the category forest ordered by sort_order then name,
// each node carrying its direct product count.
func (s *CategoryService) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	query := s.db.WithContext(ctx).Order("sort_order ASC, name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var categories []models.Category
	if err := query.Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}

	counts, err := s.productCounts(ctx, categories, activeOnly)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		categories[i].ProductCount = counts[categories[i].ID]
	}

	return buildCategoryTree(categories), nil
}

func (s *CategoryService) productCounts(ctx context.Context, categories []models.Category, activeOnly bool) (map[uuid.UUID]int64, error) {
	var mu sync.Mutex
	counts := make(map[uuid.UUID]int64, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, category := range categories {
		id := category.ID
		g.Go(func() error {
			query := s.db.WithContext(gctx).Model(&models.Product{}).Where("category_id = ?", id)
			if activeOnly {
				query = query.Where("is_active = ?", true)
			}
			var count int64
			if err := query.Count(&count).Error; err != nil {
				return fmt.Errorf("failed to count products for category %s: %w", id, err)
			}
			mu.Lock()
			counts[id] = count
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

func buildCategoryTree(categories []models.Category) []models.Category {
	known := make(map[uuid.UUID]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}

	children := make(map[uuid.UUID][]models.Category)
	var roots []models.Category
	for _, c := range categories {
		// Orphans (parent filtered out or missing) are shown at the top level.
		if c.ParentID == nil || !known[*c.ParentID] {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	var attach func(nodes []models.Category) []models.Category
	attach = func(nodes []models.Category) []models.Category {
		for i := range nodes {
			nodes[i].Children = attach(children[nodes[i].ID])
		}
		return nodes
	}

	if roots == nil {
		return []models.Category{}
	}
	return attach(roots)
}

func (s *CategoryService) GetCategory(id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := s.db.Preload("Children", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC, name ASC")
	}).First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := s.db.Model(&models.Product{}).Where("category_id = ?", id).Count(&category.ProductCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	return &category, nil
}

func (s *CategoryService) CreateCategory(req *CreateCategoryRequest) (*models.Category, error) {
	slug := req.Slug
	if slug == "" {
		slug = utils.Slugify(req.Name)
	}
	if err := s.ensureSlugAvailable(slug, uuid.Nil); err != nil {
		return nil, err
	}

	if req.ParentID != nil {
		if _, err := s.GetCategory(*req.ParentID); err != nil {
			return nil, err
		}
	}

	category := &models.Category{
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug,
		Description: req.Description,
		ParentID:    req.ParentID,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(category).Error; err != nil {
			return err
		}
		if req.IsActive != nil && !*req.IsActive {
			category.IsActive = false
			return tx.Model(category).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"category_id": category.ID,
		"slug":        category.Slug,
	}).Info("Category created")

	return category, nil
}

func (s *CategoryService) UpdateCategory(id uuid.UUID, req *UpdateCategoryRequest) (*models.Category, error) {
	category, err := s.GetCategory(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil && *req.Slug != category.Slug {
		if err := s.ensureSlugAvailable(*req.Slug, id); err != nil {
			return nil, err
		}
		updates["slug"] = *req.Slug
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	switch {
	case req.ClearParent:
		updates["parent_id"] = nil
	case req.ParentID != nil:
		if err := s.ensureNotAncestor(id, *req.ParentID); err != nil {
			return nil, err
		}
		updates["parent_id"] = *req.ParentID
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Category{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update category: %w", err)
		}
	}

	return s.GetCategory(id)
}

// ensureNotAncestor rejects parentID when it is id itself or one of its
// descendants.
func (s *CategoryService) ensureNotAncestor(id, parentID uuid.UUID) error {
	current := parentID
	visited := map[uuid.UUID]bool{}
	for {
		if current == id {
			return ErrCategoryCycle
		}
		if visited[current] {
			return ErrCategoryCycle
		}
		visited[current] = true

		var node models.Category
		if err := s.db.Select("id", "parent_id").First(&node, "id = ?", current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}
		if node.ParentID == nil {
			return nil
		}
		current = *node.ParentID
	}
}

// DeleteCategory removes a category that has neither products nor
// subcategories.
func (s *CategoryService) DeleteCategory(id uuid.UUID) error {
	if _, err := s.GetCategory(id); err != nil {
		return err
	}

	var products, children int64
	if err := s.db.Model(&models.Product{}).Where("category_id = ?", id).Count(&products).Error; err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if err := s.db.Model(&models.Category{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
		return fmt.Errorf("failed to count subcategories: %w", err)
	}
	if products > 0 || children > 0 {
		return ErrCategoryInUse
	}

	if err := s.db.Delete(&models.Category{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	logrus.WithField("category_id", id).Info("Category deleted")
	return nil
}

// CategoryLookup maps lower-cased category names and slugs to ids.
func (s *CategoryService) CategoryLookup() (map[string]uuid.UUID, error) {
	var categories []models.Category
	if err := s.db.Select("id", "name", "slug").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	lookup := make(map[string]uuid.UUID, len(categories)*2)
	for _, c := range categories {
		lookup[strings.ToLower(strings.TrimSpace(c.Name))] = c.ID
		lookup[strings.ToLower(c.Slug)] = c.ID
	}
	return lookup, nil
}

func (s *CategoryService) ensureSlugAvailable(slug string, exceptID uuid.UUID) error {
	if slug == "" {
		return ErrInvalidSlug
	}
	var count int64
	if err := s.db.Model(&models.Category{}).Where("slug = ? AND id <> ?", slug, exceptID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}
	if count > 0 {
		return ErrSlugTaken
	}
	return nil
}
