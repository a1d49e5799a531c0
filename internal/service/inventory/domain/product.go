// internal/service/inventory/domain/product.go
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale 金额保留的小数位数，与存储列 decimal(12,2) 一致
const MoneyScale = 2

// maxPrice 是 decimal(12,2) 能表示的最大值
var maxPrice = decimal.RequireFromString("9999999999.99")

// Product 是库存商品实体。
// ID 由存储层分配；Code 是对外的业务主键（UPC/SKU），全局唯一，用于幂等 upsert。
type Product struct {
	ID             uint64          `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	WholesalePrice decimal.Decimal `json:"wholesalePrice"`
	RetailPrice    decimal.Decimal `json:"retailPrice"`
	Quantity       int             `json:"quantity"` // 在库数量，只在 checkout 时扣减
}

// Validate 校验 upsert 的候选值
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return &InvalidInputError{Field: "code", Reason: "must not be empty"}
	}
	if err := validatePrice("wholesalePrice", p.WholesalePrice); err != nil {
		return err
	}
	if err := validatePrice("retailPrice", p.RetailPrice); err != nil {
		return err
	}
	if p.Quantity < 0 {
		return &InvalidInputError{Field: "quantity", Reason: "must not be negative"}
	}
	return nil
}

func validatePrice(field string, price decimal.Decimal) error {
	if price.IsNegative() {
		return &InvalidInputError{Field: field, Reason: "must not be negative"}
	}
	if !price.Equal(price.Round(MoneyScale)) {
		return &InvalidInputError{Field: field, Reason: "must have at most 2 decimal places"}
	}
	if price.GreaterThan(maxPrice) {
		return &InvalidInputError{Field: field, Reason: "exceeds " + maxPrice.String()}
	}
	return nil
}

// OverwriteWith 用候选值整体覆盖名称、价格和数量，保留自身 ID 和 Code。
// 这是整值替换，不是按字段 patch：候选值中的零值同样会写入。
func (p *Product) OverwriteWith(src *Product) {
	p.Name = src.Name
	p.WholesalePrice = src.WholesalePrice
	p.RetailPrice = src.RetailPrice
	p.Quantity = src.Quantity
}

// CanSupply 判断当前在库数量能否满足 qty
func (p *Product) CanSupply(qty int) bool {
	return qty <= p.Quantity
}

// LineTotal 按零售价计算 qty 件的金额，定点运算，无浮点误差
func (p *Product) LineTotal(qty int) decimal.Decimal {
	return p.RetailPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// Deduct 扣减在库数量。结果允许为负，调用方负责串行化同一商品的扣减。
func (p *Product) Deduct(qty int) int {
	p.Quantity -= qty
	return p.Quantity
}

// Clone 返回一份独立副本
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
