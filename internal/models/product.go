// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProductSpecifications is the typed form of the specifications column.
type ProductSpecifications struct {
	Weight     string `json:"weight,omitempty"`
	Dimensions string `json:"dimensions,omitempty"`
	Material   string `json:"material,omitempty"`
	Color      string `json:"color,omitempty"`
}

type Product struct {
	BaseModel
	Name              string                                    `json:"name" gorm:"size:255;not null"`
	Slug              string                                    `json:"slug" gorm:"size:255;not null;uniqueIndex"`
	SKU               string                                    `json:"sku" gorm:"column:sku;size:100;not null;uniqueIndex"`
	Description       string                                    `json:"description" gorm:"type:text"`
	Price             float64                                   `json:"price" gorm:"type:decimal(10,2);not null"`
	ComparePrice      *float64                                  `json:"compare_price" gorm:"type:decimal(10,2)"`
	InventoryQuantity int                                       `json:"inventory_quantity" gorm:"default:0"`
	TrackInventory    bool                                      `json:"track_inventory" gorm:"default:true"`
	AllowBackorder    bool                                      `json:"allow_backorder" gorm:"default:false"`
	LowStockThreshold int                                       `json:"low_stock_threshold" gorm:"default:5"`
	CategoryID        *uuid.UUID                                `json:"category_id" gorm:"type:uuid;index"`
	Tags              StringArray                               `json:"tags"`
	Images            StringArray                               `json:"images"`
	Specifications    datatypes.JSONType[ProductSpecifications] `json:"specifications"`
	MetaTitle         string                                    `json:"meta_title" gorm:"size:255"`
	MetaDescription   string                                    `json:"meta_description" gorm:"type:text"`
	IsActive          bool                                      `json:"is_active" gorm:"default:true;index"`
	IsFeatured        bool                                      `json:"is_featured" gorm:"default:false;index"`

	// Relationships
	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// IsLowStock reports whether a tracked product is at or below its threshold.
func (p *Product) IsLowStock() bool {
	return p.TrackInventory && p.InventoryQuantity <= p.LowStockThreshold
}

// CanFulfil reports whether qty units can be sold right now.
func (p *Product) CanFulfil(qty int) bool {
	if !p.TrackInventory || p.AllowBackorder {
		return true
	}
	return p.InventoryQuantity >= qty
}
