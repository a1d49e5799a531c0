package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inventory/internal/service/inventory/domain"
)

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uint64) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "query product %d", id)
	}
	return ToDomainProduct(&model), nil
}

func (r *GormProductRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "query product by code %s", code)
	}
	return ToDomainProduct(&model), nil
}

// Save ID 为 0 时插入，否则按列整体更新（零值同样写入）
func (r *GormProductRepository) Save(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	model := FromDomainProduct(product)
	db := r.db.WithContext(ctx)

	if model.ID == 0 {
		if err := db.Create(model).Error; err != nil {
			return nil, errors.Wrapf(translateWriteError(err), "create product %s", product.Code)
		}
		return ToDomainProduct(model), nil
	}

	res := db.Model(model).
		Select("Code", "Name", "WholesalePrice", "RetailPrice", "Quantity", "UpdatedAt").
		Updates(model)
	if err := checkUpdated(res); err != nil {
		return nil, errors.Wrapf(err, "update product %d", product.ID)
	}
	return ToDomainProduct(model), nil
}

func (r *GormProductRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	var models []*ProductModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products := make([]*domain.Product, len(models))
	for i, m := range models {
		products[i] = ToDomainProduct(m)
	}
	return products, nil
}

// GormCartRepository 是 CartRepository 的 GORM 实现，加载时预加载商品
type GormCartRepository struct {
	db *gorm.DB
}

func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

func (r *GormCartRepository) FindByID(ctx context.Context, id uint64) (*domain.Cart, error) {
	var model CartModel
	err := r.db.WithContext(ctx).Preload("Product").First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "query shopping cart %d", id)
	}
	return ToDomainCart(&model), nil
}

func (r *GormCartRepository) Save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	model := FromDomainCart(cart)
	// 只写购物车本身，商品由 ProductRepository 负责
	db := r.db.WithContext(ctx).Omit(clause.Associations)

	if model.ID == 0 {
		if err := db.Create(model).Error; err != nil {
			return nil, errors.Wrap(err, "create shopping cart")
		}
	} else {
		// 条件更新：已结算的购物车不会被覆盖
		res := db.Model(model).
			Where("checked_out = ?", false).
			Select("Quantity", "ProductID", "CheckedOut", "TotalAmount", "UpdatedAt").
			Updates(model)
		if err := checkUpdated(res); err != nil {
			if errors.Is(err, domain.ErrRowNotUpdated) {
				return nil, &domain.AlreadyCheckedOutError{CartID: cart.ID}
			}
			return nil, errors.Wrapf(err, "update shopping cart %d", cart.ID)
		}
	}
	saved := *cart
	saved.ID = model.ID
	return &saved, nil
}

func (r *GormCartRepository) FindOpenWithPositiveQuantity(ctx context.Context) ([]*domain.Cart, error) {
	var models []*CartModel
	err := r.db.WithContext(ctx).Preload("Product").
		Where("checked_out = ? AND quantity > ?", false, 0).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list open shopping carts")
	}
	carts := make([]*domain.Cart, len(models))
	for i, m := range models {
		carts[i] = ToDomainCart(m)
	}
	return carts, nil
}

// checkUpdated 把"没有匹配到任何行"视为错误。
// 连接串开启了 clientFoundRows，RowsAffected 是匹配行数而不是实际变化的行数。
func checkUpdated(res *gorm.DB) error {
	if res.Error != nil {
		return translateWriteError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrRowNotUpdated
	}
	return nil
}

// translateWriteError 把驱动的唯一键冲突转换为领域错误，需要 gorm.Config.TranslateError
func translateWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateCode
	}
	return err
}
