// internal/service/inventory/domain/repository.go
package domain

import (
	"context"
	"errors"
)

// 仓储实现在写入失败时返回的错误
var (
	// ErrDuplicateCode 商品 Code 违反唯一约束，通常是并发创建了同一个 Code
	ErrDuplicateCode = errors.New("product code already exists")
	// ErrRowNotUpdated 按 ID 更新时目标行不存在
	ErrRowNotUpdated = errors.New("no row matched the update")
)

// ProductRepository 定义了商品的持久化接口。
// 它位于领域层，但由基础设施层实现。查找不到时返回 (nil, nil)。
type ProductRepository interface {
	FindByID(ctx context.Context, id uint64) (*Product, error)
	FindByCode(ctx context.Context, code string) (*Product, error)

	// Save 创建或整体更新一个商品。ID 为 0 时由存储层分配，返回持久化后的值。
	// Code 冲突返回 ErrDuplicateCode，更新的行不存在返回 ErrRowNotUpdated。
	Save(ctx context.Context, product *Product) (*Product, error)

	ListAll(ctx context.Context) ([]*Product, error)
}

// CartRepository 定义了购物车的持久化接口，加载时总是带上关联的商品。
type CartRepository interface {
	FindByID(ctx context.Context, id uint64) (*Cart, error)

	// Save 创建或更新一个购物车。已结算的购物车不会被覆盖，此时返回 AlreadyCheckedOutError。
	Save(ctx context.Context, cart *Cart) (*Cart, error)

	// FindOpenWithPositiveQuantity 返回所有未结算且数量大于 0 的购物车
	FindOpenWithPositiveQuantity(ctx context.Context) ([]*Cart, error)
}

type consistentReadKey struct{}

// WithConsistentRead 标记本次读取必须绕过缓存，直接读取权威存储。
// 在持有商品锁的"读-改-写"中使用。
func WithConsistentRead(ctx context.Context) context.Context {
	return context.WithValue(ctx, consistentReadKey{}, true)
}

// IsConsistentRead 判断 ctx 是否要求强一致读取
func IsConsistentRead(ctx context.Context) bool {
	v, _ := ctx.Value(consistentReadKey{}).(bool)
	return v
}
