// internal/service/inventory/domain/checkout.go
package domain

import "fmt"

// OutcomeKind 单个购物车在一次 checkout 中的处理结果
type OutcomeKind string

const (
	OutcomeDeducted OutcomeKind = "DEDUCTED" // 库存已扣减，购物车已结算
	OutcomeSkipped  OutcomeKind = "SKIPPED"  // 购物车此前已结算，跳过
	OutcomeFailed   OutcomeKind = "FAILED"   // 持久化失败，本购物车未结算
)

// CheckoutOutcome 是按购物车 ID 记录的结果
type CheckoutOutcome struct {
	CartID  uint64      `json:"cartId"`
	Kind    OutcomeKind `json:"kind"`
	Product *Product    `json:"product,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

func Deducted(cartID uint64, product *Product) CheckoutOutcome {
	return CheckoutOutcome{CartID: cartID, Kind: OutcomeDeducted, Product: product}
}

func Skipped(cartID uint64) CheckoutOutcome {
	return CheckoutOutcome{
		CartID: cartID,
		Kind:   OutcomeSkipped,
		Reason: fmt.Sprintf("Shopping cart with ID %d is already checked out.", cartID),
	}
}

func Failed(cartID uint64, reason string) CheckoutOutcome {
	return CheckoutOutcome{CartID: cartID, Kind: OutcomeFailed, Reason: reason}
}

// CheckoutResult 按输入顺序保存每个购物车的结果
type CheckoutResult struct {
	Outcomes []CheckoutOutcome `json:"outcomes"`
}

// Record 追加一个结果
func (r *CheckoutResult) Record(o CheckoutOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Products 返回实际被扣减的商品（扣减后的值）
func (r *CheckoutResult) Products() []*Product {
	products := make([]*Product, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeDeducted {
			products = append(products, o.Product)
		}
	}
	return products
}

// Messages 返回被跳过或失败的购物车对应的说明
func (r *CheckoutResult) Messages() []string {
	messages := make([]string, 0)
	for _, o := range r.Outcomes {
		if o.Kind != OutcomeDeducted {
			messages = append(messages, o.Reason)
		}
	}
	return messages
}

// Count 统计某一类结果的数量
func (r *CheckoutResult) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}
