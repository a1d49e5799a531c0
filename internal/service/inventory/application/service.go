// internal/service/inventory/application/service.go
package application

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"inventory/internal/pkg/logger"
	"inventory/internal/service/inventory/domain"
)

// InventoryService 是库存占用与结算引擎，负责维护商品和购物车之间的所有不变量。
// 它只和两个仓储、锁和事件端口打交道，不感知任何传输层细节。
type InventoryService struct {
	products domain.ProductRepository
	carts    domain.CartRepository
	locker   StockLocker
	events   EventPublisher
	tracer   trace.Tracer
}

func NewInventoryService(products domain.ProductRepository, carts domain.CartRepository, locker StockLocker, events EventPublisher, tracer trace.Tracer) *InventoryService {
	return &InventoryService{
		products: products,
		carts:    carts,
		locker:   locker,
		events:   events,
		tracer:   tracer,
	}
}

// AddProduct 按 Code 做 upsert：已存在则整体覆盖名称、价格、数量并保留 ID，否则新建。
func (s *InventoryService) AddProduct(ctx context.Context, candidate *domain.Product) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "app.AddProduct")
	defer span.End()

	if candidate == nil {
		return nil, &domain.InvalidInputError{Field: "product", Reason: "must not be empty"}
	}
	span.SetAttributes(attribute.String("product.code", candidate.Code))

	if err := candidate.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	existing, err := s.products.FindByCode(ctx, candidate.Code)
	if err != nil {
		return nil, s.fail(span, errors.Wrapf(err, "failed to look up product by code %s", candidate.Code))
	}

	var saved *domain.Product
	created := existing == nil
	if created {
		logger.Ctx(ctx).Info().Str("code", candidate.Code).Msg("Product does not exist, saving new product")
		fresh := candidate.Clone()
		fresh.ID = 0
		saved, err = s.products.Save(ctx, fresh)
		if errors.Is(err, domain.ErrDuplicateCode) {
			// 并发请求先创建了同一个 Code，转为覆盖它
			logger.Ctx(ctx).Info().Str("code", candidate.Code).Msg("Product was created concurrently, updating product")
			created = false
			saved, err = s.overwriteByCode(ctx, candidate)
		}
	} else {
		logger.Ctx(ctx).Info().Str("code", candidate.Code).Uint64("product_id", existing.ID).Msg("Product exists, updating product")
		saved, err = s.overwriteProduct(ctx, existing.ID, candidate)
	}
	if err != nil {
		return nil, s.fail(span, err)
	}

	evt := domain.NewEvent(domain.EventProductUpserted)
	evt.ProductID = saved.ID
	evt.ProductCode = saved.Code
	evt.Quantity = saved.Quantity
	evt.Amount = saved.RetailPrice
	evt.Created = created
	s.publish(ctx, evt)

	span.SetAttributes(attribute.Int64("product.id", int64(saved.ID)), attribute.Bool("product.created", created))
	return saved, nil
}

// overwriteProduct 在商品锁内重新读取再覆盖，避免和并发的 checkout 扣减互相覆盖
func (s *InventoryService) overwriteProduct(ctx context.Context, productID uint64, candidate *domain.Product) (*domain.Product, error) {
	release, err := s.locker.Lock(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to lock product %d", productID)
	}
	defer release()
	ctx = domain.WithConsistentRead(ctx)

	current, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reload product %d", productID)
	}
	if current == nil {
		return nil, &domain.NotFoundError{Entity: domain.EntityProduct, ID: productID}
	}

	current.OverwriteWith(candidate)
	saved, err := s.products.Save(ctx, current)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to save product %d", productID)
	}
	return saved, nil
}

func (s *InventoryService) overwriteByCode(ctx context.Context, candidate *domain.Product) (*domain.Product, error) {
	existing, err := s.products.FindByCode(domain.WithConsistentRead(ctx), candidate.Code)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up product by code %s", candidate.Code)
	}
	if existing == nil {
		return nil, errors.Errorf("product %s conflicted on create but cannot be found", candidate.Code)
	}
	return s.overwriteProduct(ctx, existing.ID, candidate)
}

// GetProductByID 按 ID 查询商品，不存在时返回 NotFound(Product, id)
func (s *InventoryService) GetProductByID(ctx context.Context, id uint64) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetProductByID")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", int64(id)))

	if id == 0 {
		return nil, &domain.InvalidInputError{Field: "id", Reason: "must be a positive integer"}
	}
	return s.loadProduct(ctx, span, id)
}

// GetAllProducts 返回所有商品
func (s *InventoryService) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetAllProducts")
	defer span.End()

	products, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, s.fail(span, errors.Wrap(err, "failed to list products"))
	}
	return products, nil
}

// AddToCart 为购物车声明对某商品的占用。
// 只校验商品当前的在库数量，并不预占或扣减库存；多个未结算的购物车可能同时声明同一批库存，
// 冲突只在 checkout 时体现。
func (s *InventoryService) AddToCart(ctx context.Context, req *AddToCartRequest) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "app.AddToCart")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart.id", int64(req.CartID)),
		attribute.Int64("product.id", int64(req.ProductID)),
		attribute.Int("purchase.quantity", req.PurchaseQuantity),
	)

	if req.PurchaseQuantity <= 0 {
		err := &domain.InvalidInputError{Field: "purchaseQuantity", Reason: "must be a positive integer"}
		span.RecordError(err)
		return nil, err
	}
	if req.ProductID == 0 {
		err := &domain.InvalidInputError{Field: "productId", Reason: "must be a positive integer"}
		span.RecordError(err)
		return nil, err
	}

	// 1. 加载商品
	product, err := s.loadProduct(ctx, span, req.ProductID)
	if err != nil {
		return nil, err
	}

	// 2. 校验在库数量
	if !product.CanSupply(req.PurchaseQuantity) {
		err := &domain.InsufficientQuantityError{
			ProductName: product.Name,
			Requested:   req.PurchaseQuantity,
			Available:   product.Quantity,
		}
		logger.Ctx(ctx).Warn().Str("product", product.Name).
			Int("requested", req.PurchaseQuantity).Int("available", product.Quantity).
			Msg("Insufficient quantity for product")
		span.RecordError(err)
		return nil, err
	}

	// 3. 定点计算金额
	total := product.LineTotal(req.PurchaseQuantity)

	// 4. 更新已有购物车或新建
	var saved *domain.Cart
	created := req.CartID == 0
	if created {
		saved, err = s.carts.Save(ctx, domain.NewCart(product, req.PurchaseQuantity))
		if err != nil {
			return nil, s.fail(span, errors.Wrap(err, "failed to save shopping cart"))
		}
	} else {
		saved, err = s.replaceClaim(ctx, span, req.CartID, req.PurchaseQuantity, total)
		if err != nil {
			return nil, err
		}
	}

	logger.Ctx(ctx).Info().Uint64("cart_id", saved.ID).Uint64("product_id", product.ID).
		Int("quantity", saved.Quantity).Bool("created", created).Msg("Shopping cart claim recorded")

	evt := domain.NewEvent(domain.EventCartClaimed)
	evt.CartID = saved.ID
	evt.ProductID = product.ID
	evt.ProductCode = product.Code
	evt.Quantity = saved.Quantity
	evt.Amount = saved.TotalAmount
	evt.Created = created
	s.publish(ctx, evt)

	return saved, nil
}

// replaceClaim 在商品锁内重新读取购物车再整体替换。
// 和 checkout 使用同一把锁，已结算的购物车不会被重新打开。
func (s *InventoryService) replaceClaim(ctx context.Context, span trace.Span, cartID uint64, qty int, total decimal.Decimal) (*domain.Cart, error) {
	cart, err := s.loadCart(ctx, span, cartID)
	if err != nil {
		return nil, err
	}

	productID := cart.ProductID()
	release, err := s.locker.Lock(ctx, productID)
	if err != nil {
		return nil, s.fail(span, errors.Wrapf(err, "failed to lock product %d", productID))
	}
	defer release()

	current, err := s.loadCart(domain.WithConsistentRead(ctx), span, cartID)
	if err != nil {
		return nil, err
	}
	if err := current.Replace(qty, total); err != nil {
		span.RecordError(err)
		return nil, err
	}

	saved, err := s.carts.Save(ctx, current)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyCheckedOut) {
			span.RecordError(err)
			return nil, err
		}
		return nil, s.fail(span, errors.Wrap(err, "failed to save shopping cart"))
	}
	return saved, nil
}

// ComputeTotal 按商品当前零售价汇总未结算购物车的金额。
// 任何一个 ID 不存在都会中止整个计算。
func (s *InventoryService) ComputeTotal(ctx context.Context, cartIDs []uint64) (decimal.Decimal, error) {
	ctx, span := s.tracer.Start(ctx, "app.ComputeTotal")
	defer span.End()
	span.SetAttributes(attribute.Int("cart.count", len(cartIDs)))

	total := decimal.Zero
	for _, id := range cartIDs {
		cart, err := s.loadCart(ctx, span, id)
		if err != nil {
			return decimal.Zero, err
		}
		if cart.CheckedOut {
			continue
		}
		total = total.Add(cart.CurrentTotal())
	}

	logger.Ctx(ctx).Debug().Str("total", total.String()).Int("carts", len(cartIDs)).Msg("Computed shopping cart total")
	return total, nil
}

// Checkout 依次结算每个购物车：扣减商品库存并将购物车置为已结算。
// 每个购物车独立提交，没有跨购物车的事务；只有购物车不存在时才中止整个调用，
// 其它情况都记录为该购物车的结果后继续处理下一个。
func (s *InventoryService) Checkout(ctx context.Context, cartIDs []uint64) (*domain.CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.Checkout")
	defer span.End()
	span.SetAttributes(attribute.Int("cart.count", len(cartIDs)))

	result := &domain.CheckoutResult{}
	for _, id := range cartIDs {
		cart, err := s.loadCart(ctx, span, id)
		if err != nil {
			return nil, err
		}

		var outcome domain.CheckoutOutcome
		if cart.CheckedOut {
			outcome = domain.Skipped(id)
		} else {
			outcome = s.checkoutCart(ctx, cart)
		}
		result.Record(outcome)
		s.publishOutcome(ctx, cart, outcome)
	}

	span.SetAttributes(
		attribute.Int("checkout.deducted", result.Count(domain.OutcomeDeducted)),
		attribute.Int("checkout.skipped", result.Count(domain.OutcomeSkipped)),
		attribute.Int("checkout.failed", result.Count(domain.OutcomeFailed)),
	)
	if result.Count(domain.OutcomeFailed) > 0 {
		span.SetStatus(codes.Error, "some shopping carts failed to check out")
	}
	logger.Ctx(ctx).Info().Int("carts", len(cartIDs)).
		Int("deducted", result.Count(domain.OutcomeDeducted)).
		Int("skipped", result.Count(domain.OutcomeSkipped)).
		Int("failed", result.Count(domain.OutcomeFailed)).
		Msg("Checkout complete")
	return result, nil
}

// checkoutCart 在商品锁内完成一个购物车的状态流转
func (s *InventoryService) checkoutCart(ctx context.Context, cart *domain.Cart) domain.CheckoutOutcome {
	ctx, span := s.tracer.Start(ctx, "app.CheckoutCart")
	defer span.End()

	productID := cart.ProductID()
	span.SetAttributes(attribute.Int64("cart.id", int64(cart.ID)), attribute.Int64("product.id", int64(productID)))

	release, err := s.locker.Lock(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return domain.Failed(cart.ID, fmt.Sprintf("Failed to lock product ID %d: %v", productID, err))
	}
	defer release()

	// 锁内绕过缓存重新读取购物车和商品，拿到最新的结算状态和在库数量
	ctx = domain.WithConsistentRead(ctx)
	current, err := s.carts.FindByID(ctx, cart.ID)
	if err != nil || current == nil {
		span.RecordError(err)
		return domain.Failed(cart.ID, fmt.Sprintf("Error reloading shopping cart with ID %d", cart.ID))
	}
	if current.CheckedOut {
		return domain.Skipped(cart.ID)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil || product == nil {
		span.RecordError(err)
		return domain.Failed(cart.ID, fmt.Sprintf("Error updating product quantity for product ID %d", productID))
	}

	remaining := product.Deduct(current.Quantity)
	updated, err := s.products.Save(ctx, product)
	if err != nil || updated == nil {
		logger.Ctx(ctx).Error().Err(err).Uint64("product_id", productID).Msg("Error updating product quantity")
		span.RecordError(err)
		return domain.Failed(cart.ID, fmt.Sprintf("Error updating product quantity for product ID %d", productID))
	}

	current.Product = updated
	if err := current.MarkCheckedOut(updated.LineTotal(current.Quantity)); err != nil {
		return domain.Skipped(cart.ID)
	}

	if _, err := s.carts.Save(ctx, current); err != nil {
		// 购物车未能落库：把已扣减的库存加回去，保持"要么都生效，要么都不生效"
		span.RecordError(err)
		s.compensateDeduction(ctx, updated, current.Quantity)
		return domain.Failed(cart.ID, fmt.Sprintf("Error checking out shopping cart with ID %d", cart.ID))
	}

	logger.Ctx(ctx).Info().Uint64("product_id", productID).Int("remaining", remaining).
		Str("total", current.TotalAmount.String()).Msg("Checked out product")
	return domain.Deducted(cart.ID, updated)
}

// compensateDeduction 是扣减库存的补偿操作
func (s *InventoryService) compensateDeduction(ctx context.Context, product *domain.Product, qty int) {
	ctx, span := s.tracer.Start(ctx, "app.compensation.RestoreStock")
	defer span.End()

	restored := product.Clone()
	restored.Quantity += qty
	if _, err := s.products.Save(ctx, restored); err != nil {
		// 补偿失败需要人工介入
		span.RecordError(err, trace.WithAttributes(attribute.Bool("critical.error", true)))
		logger.Ctx(ctx).Error().Err(err).Uint64("product_id", product.ID).Int("quantity", qty).
			Msg("CRITICAL: failed to restore product quantity after cart save failure")
	}
}

// ListOpenCarts 返回所有未结算且数量为正的购物车
func (s *InventoryService) ListOpenCarts(ctx context.Context) ([]*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOpenCarts")
	defer span.End()

	carts, err := s.carts.FindOpenWithPositiveQuantity(ctx)
	if err != nil {
		return nil, s.fail(span, errors.Wrap(err, "failed to list open shopping carts"))
	}
	return carts, nil
}

func (s *InventoryService) loadProduct(ctx context.Context, span trace.Span, id uint64) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, errors.Wrapf(err, "failed to load product %d", id))
	}
	if product == nil {
		err := &domain.NotFoundError{Entity: domain.EntityProduct, ID: id}
		logger.Ctx(ctx).Warn().Uint64("product_id", id).Msg("Product not found")
		span.RecordError(err)
		return nil, err
	}
	return product, nil
}

func (s *InventoryService) loadCart(ctx context.Context, span trace.Span, id uint64) (*domain.Cart, error) {
	cart, err := s.carts.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, errors.Wrapf(err, "failed to load shopping cart %d", id))
	}
	if cart == nil {
		err := &domain.NotFoundError{Entity: domain.EntityCart, ID: id}
		logger.Ctx(ctx).Warn().Uint64("cart_id", id).Msg("Shopping cart not found")
		span.RecordError(err)
		return nil, err
	}
	return cart, nil
}

func (s *InventoryService) publishOutcome(ctx context.Context, cart *domain.Cart, outcome domain.CheckoutOutcome) {
	var evt domain.Event
	switch outcome.Kind {
	case domain.OutcomeDeducted:
		evt = domain.NewEvent(domain.EventCartCheckedOut)
		evt.ProductID = outcome.Product.ID
		evt.ProductCode = outcome.Product.Code
		evt.Remaining = outcome.Product.Quantity
		evt.Amount = outcome.Product.LineTotal(cart.Quantity)
	case domain.OutcomeSkipped:
		evt = domain.NewEvent(domain.EventCheckoutSkipped)
		evt.ProductID = cart.ProductID()
	default:
		evt = domain.NewEvent(domain.EventCheckoutFailed)
		evt.ProductID = cart.ProductID()
	}
	evt.CartID = outcome.CartID
	evt.Quantity = cart.Quantity
	evt.Reason = outcome.Reason
	s.publish(ctx, evt)
}

func (s *InventoryService) publish(ctx context.Context, evt domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("event_type", string(evt.Type)).Str("event_id", evt.ID).
			Msg("WARN: failed to publish inventory event")
	}
}

func (s *InventoryService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
