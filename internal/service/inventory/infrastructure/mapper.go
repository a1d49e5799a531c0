package infrastructure

import "inventory/internal/service/inventory/domain"

// ToDomainProduct 将数据库模型转换为领域模型
func ToDomainProduct(model *ProductModel) *domain.Product {
	if model == nil {
		return nil
	}
	return &domain.Product{
		ID:             model.ID,
		Code:           model.Code,
		Name:           model.Name,
		WholesalePrice: model.WholesalePrice,
		RetailPrice:    model.RetailPrice,
		Quantity:       model.Quantity,
	}
}

// FromDomainProduct 将领域模型转换为数据库模型
func FromDomainProduct(p *domain.Product) *ProductModel {
	if p == nil {
		return nil
	}
	return &ProductModel{
		ID:             p.ID,
		Code:           p.Code,
		Name:           p.Name,
		WholesalePrice: p.WholesalePrice,
		RetailPrice:    p.RetailPrice,
		Quantity:       p.Quantity,
	}
}

// ToDomainCart 转换购物车，关联的商品来自预加载的 Product
func ToDomainCart(model *CartModel) *domain.Cart {
	if model == nil {
		return nil
	}
	return &domain.Cart{
		ID:          model.ID,
		Quantity:    model.Quantity,
		Product:     ToDomainProduct(&model.Product),
		CheckedOut:  model.CheckedOut,
		TotalAmount: model.TotalAmount,
	}
}

// FromDomainCart 只带上外键，不会级联写入商品
func FromDomainCart(c *domain.Cart) *CartModel {
	if c == nil {
		return nil
	}
	return &CartModel{
		ID:          c.ID,
		Quantity:    c.Quantity,
		ProductID:   c.ProductID(),
		CheckedOut:  c.CheckedOut,
		TotalAmount: c.TotalAmount,
	}
}
