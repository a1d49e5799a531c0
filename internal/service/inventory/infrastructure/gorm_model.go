// internal/service/inventory/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductModel 对应数据库中的 products 表
type ProductModel struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement"`
	Code           string          `gorm:"size:64;not null;uniqueIndex"`
	Name           string          `gorm:"size:255"`
	WholesalePrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RetailPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Quantity       int             `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "products"
}

// CartModel 对应数据库中的 shopping_carts 表
type CartModel struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	Quantity    int             `gorm:"not null"`
	ProductID   uint64          `gorm:"not null;index"`
	CheckedOut  bool            `gorm:"not null;default:false;index"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// 关联关系
	Product ProductModel `gorm:"foreignKey:ProductID"`
}

func (CartModel) TableName() string {
	return "shopping_carts"
}
