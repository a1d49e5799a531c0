// internal/service/inventory/application/port.go
package application

import (
	"context"

	"inventory/internal/service/inventory/domain"
)

// StockLocker 串行化同一商品库存的"读-改-写"。
// 返回的 release 必须被调用，且可以重复调用。
type StockLocker interface {
	Lock(ctx context.Context, productID uint64) (release func(), err error)
}

// EventPublisher 是领域事件的出站端口。
// 发布失败只记录日志，不影响业务结果。
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
