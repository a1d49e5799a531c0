// internal/service/inventory/infrastructure/memory_repository.go
package infrastructure

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"inventory/internal/service/inventory/domain"
)

// MemoryProductRepository 是 ProductRepository 的内存实现，用于本地运行和测试。
// 读写都做深拷贝，调用方拿到的值不会和存储共享。
type MemoryProductRepository struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]*domain.Product
	byCode map[string]uint64
}

func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		byID:   make(map[uint64]*domain.Product),
		byCode: make(map[string]uint64),
	}
}

func (r *MemoryProductRepository) FindByID(_ context.Context, id uint64) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id].Clone(), nil
}

func (r *MemoryProductRepository) FindByCode(_ context.Context, code string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryProductRepository) Save(_ context.Context, product *domain.Product) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byCode[product.Code]; ok && owner != product.ID {
		return nil, errors.Wrapf(domain.ErrDuplicateCode, "code %s", product.Code)
	}

	stored := product.Clone()
	if stored.ID == 0 {
		r.nextID++
		stored.ID = r.nextID
	} else {
		prev, ok := r.byID[stored.ID]
		if !ok {
			return nil, errors.Wrapf(domain.ErrRowNotUpdated, "product %d", stored.ID)
		}
		if prev.Code != stored.Code {
			delete(r.byCode, prev.Code)
		}
	}

	r.byID[stored.ID] = stored
	r.byCode[stored.Code] = stored.ID
	return stored.Clone(), nil
}

func (r *MemoryProductRepository) ListAll(_ context.Context) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	products := make([]*domain.Product, 0, len(r.byID))
	for _, p := range r.byID {
		products = append(products, p.Clone())
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// MemoryCartRepository 是 CartRepository 的内存实现。
// 只保存商品 ID，加载时再关联当前的商品，和数据库外键预加载的行为一致。
type MemoryCartRepository struct {
	mu       sync.RWMutex
	nextID   uint64
	carts    map[uint64]*domain.Cart
	products domain.ProductRepository
}

func NewMemoryCartRepository(products domain.ProductRepository) *MemoryCartRepository {
	return &MemoryCartRepository{
		carts:    make(map[uint64]*domain.Cart),
		products: products,
	}
}

func (r *MemoryCartRepository) FindByID(ctx context.Context, id uint64) (*domain.Cart, error) {
	r.mu.RLock()
	stored, ok := r.carts[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.hydrate(ctx, stored)
}

func (r *MemoryCartRepository) Save(_ context.Context, cart *domain.Cart) (*domain.Cart, error) {
	if cart.Product == nil || cart.Product.ID == 0 {
		return nil, errors.New("shopping cart must reference a persisted product")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := &domain.Cart{
		ID:          cart.ID,
		Quantity:    cart.Quantity,
		Product:     &domain.Product{ID: cart.Product.ID},
		CheckedOut:  cart.CheckedOut,
		TotalAmount: cart.TotalAmount,
	}
	if stored.ID == 0 {
		r.nextID++
		stored.ID = r.nextID
	} else {
		// 与数据库实现的条件更新一致：已结算的购物车不可覆盖
		prev, ok := r.carts[stored.ID]
		if !ok {
			return nil, errors.Wrapf(domain.ErrRowNotUpdated, "shopping cart %d", stored.ID)
		}
		if prev.CheckedOut {
			return nil, &domain.AlreadyCheckedOutError{CartID: stored.ID}
		}
	}
	r.carts[stored.ID] = stored

	saved := *cart
	saved.ID = stored.ID
	saved.Product = cart.Product.Clone()
	return &saved, nil
}

func (r *MemoryCartRepository) FindOpenWithPositiveQuantity(ctx context.Context) ([]*domain.Cart, error) {
	r.mu.RLock()
	var open []*domain.Cart
	for _, c := range r.carts {
		if !c.CheckedOut && c.Quantity > 0 {
			open = append(open, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	carts := make([]*domain.Cart, 0, len(open))
	for _, c := range open {
		hydrated, err := r.hydrate(ctx, c)
		if err != nil {
			return nil, err
		}
		carts = append(carts, hydrated)
	}
	return carts, nil
}

func (r *MemoryCartRepository) hydrate(ctx context.Context, stored *domain.Cart) (*domain.Cart, error) {
	product, err := r.products.FindByID(ctx, stored.Product.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load product %d for cart %d", stored.Product.ID, stored.ID)
	}
	if product == nil {
		return nil, errors.Errorf("cart %d references missing product %d", stored.ID, stored.Product.ID)
	}
	c := *stored
	c.Product = product
	return &c, nil
}
