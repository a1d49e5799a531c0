// internal/service/inventory/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// 错误种类的哨兵值，调用方通过 errors.Is 判断
var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrAlreadyCheckedOut    = errors.New("already checked out")
	ErrInvalidInput         = errors.New("invalid input")
)

// EntityKind 标识找不到的是哪一类实体
type EntityKind string

const (
	EntityProduct EntityKind = "Product"
	EntityCart    EntityKind = "Cart"
)

// NotFoundError 请求的商品或购物车不存在
type NotFoundError struct {
	Entity EntityKind
	ID     uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientQuantityError 申请数量超过了商品当前的在库数量
type InsufficientQuantityError struct {
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity for product: %s. Requested: %d, Available: %d",
		e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientQuantityError) Is(target error) bool { return target == ErrInsufficientQuantity }

// AlreadyCheckedOutError 试图修改一个已结算的购物车
type AlreadyCheckedOutError struct {
	CartID uint64
}

func (e *AlreadyCheckedOutError) Error() string {
	return fmt.Sprintf("failed to add to cart, cart %d is already checked out", e.CartID)
}

func (e *AlreadyCheckedOutError) Is(target error) bool { return target == ErrAlreadyCheckedOut }

// InvalidInputError 调用方违反了入参约定
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }
