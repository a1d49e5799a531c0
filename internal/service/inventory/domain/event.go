// internal/service/inventory/domain/event.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType 库存领域事件的类型
type EventType string

const (
	EventProductUpserted EventType = "inventory.product_upserted"
	EventCartClaimed     EventType = "inventory.cart_claimed"
	EventCartCheckedOut  EventType = "inventory.cart_checked_out"
	EventCheckoutSkipped EventType = "inventory.checkout_skipped"
	EventCheckoutFailed  EventType = "inventory.checkout_failed"
)

// Event 是引擎对外发出的结构化事件。
// 它只用于观测和下游通知，不参与任何控制流判断。
type Event struct {
	ID          string          `json:"eventId"`
	Type        EventType       `json:"type"`
	OccurredAt  time.Time       `json:"occurredAt"`
	ProductID   uint64          `json:"productId,omitempty"`
	ProductCode string          `json:"productCode,omitempty"`
	CartID      uint64          `json:"cartId,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
	Remaining   int             `json:"remaining,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Created     bool            `json:"created,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// NewEvent 创建一个带唯一 ID 和时间戳的事件
func NewEvent(t EventType) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
	}
}
