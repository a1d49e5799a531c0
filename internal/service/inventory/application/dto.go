// internal/service/inventory/application/dto.go
package application

import (
	"github.com/shopspring/decimal"

	"inventory/internal/service/inventory/domain"
)

// AddToCartRequest 是加购用例的输入。CartID 为 0 表示新建购物车。
type AddToCartRequest struct {
	CartID           uint64 `json:"shoppingCartId"`
	ProductID        uint64 `json:"productId"`
	PurchaseQuantity int    `json:"purchaseQuantity"`
}

// TotalResponse 是计算总价用例的输出
type TotalResponse struct {
	Total decimal.Decimal `json:"total"`
}

// CheckoutResponse 同时给出两份平行列表和按购物车的明细结果
type CheckoutResponse struct {
	Products []*domain.Product        `json:"products"`
	Messages []string                 `json:"messages"`
	Outcomes []domain.CheckoutOutcome `json:"outcomes"`
}

// ToCheckoutResponse 把领域结果转换为响应 DTO
func ToCheckoutResponse(result *domain.CheckoutResult) *CheckoutResponse {
	return &CheckoutResponse{
		Products: result.Products(),
		Messages: result.Messages(),
		Outcomes: result.Outcomes,
	}
}
