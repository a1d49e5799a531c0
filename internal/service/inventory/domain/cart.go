// internal/service/inventory/domain/cart.go
package domain

import "github.com/shopspring/decimal"

// Cart 是一条购物车记录，也是对某一商品库存的一次"占用声明"（claim）。
// 一条 Cart 只对应一个商品；CheckedOut 只能从 false 变为 true，
// 之后 Quantity、Product、TotalAmount 都不可再修改。
type Cart struct {
	ID          uint64          `json:"id"`
	Quantity    int             `json:"quantity"`
	Product     *Product        `json:"product"`
	CheckedOut  bool            `json:"checkedOut"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// NewCart 工厂函数，创建一个新的未结算购物车
func NewCart(product *Product, qty int) *Cart {
	return &Cart{
		Quantity:    qty,
		Product:     product,
		CheckedOut:  false,
		TotalAmount: product.LineTotal(qty),
	}
}

// IsOpen 未结算且数量为正的购物车才允许继续修改
func (c *Cart) IsOpen() bool {
	return !c.CheckedOut && c.Quantity > 0
}

// ProductID 返回关联商品的 ID
func (c *Cart) ProductID() uint64 {
	if c.Product == nil {
		return 0
	}
	return c.Product.ID
}

// Replace 用新的数量和金额整体替换这次占用
func (c *Cart) Replace(qty int, total decimal.Decimal) error {
	if !c.IsOpen() {
		return &AlreadyCheckedOutError{CartID: c.ID}
	}
	c.Quantity = qty
	c.TotalAmount = total
	return nil
}

// CurrentTotal 按商品当前零售价重新计算金额（存储的 TotalAmount 可能已过期）
func (c *Cart) CurrentTotal() decimal.Decimal {
	if c.Product == nil {
		return decimal.Zero
	}
	return c.Product.LineTotal(c.Quantity)
}

// MarkCheckedOut 完成结算，这是单向的状态流转
func (c *Cart) MarkCheckedOut(total decimal.Decimal) error {
	if c.CheckedOut {
		return &AlreadyCheckedOutError{CartID: c.ID}
	}
	c.TotalAmount = total
	c.CheckedOut = true
	return nil
}
