package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"inventory/internal/pkg/logger"
	"inventory/internal/service/inventory/application"
	"inventory/internal/service/inventory/domain"
)

// InventoryHandler 封装了库存和购物车的 HTTP 处理器
type InventoryHandler struct {
	service  *application.InventoryService
	gatherer prometheus.Gatherer
}

// NewInventoryHandler 创建一个新的 HTTP 处理器实例，gatherer 为 nil 时使用默认注册表
func NewInventoryHandler(service *application.InventoryService, gatherer prometheus.Gatherer) *InventoryHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &InventoryHandler{service: service, gatherer: gatherer}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /api/inventory/add-product", h.handleAddProduct)
	mux.HandleFunc("GET /api/inventory/products", h.handleGetAllProducts)
	mux.HandleFunc("GET /api/inventory/product/{id}", h.handleGetProduct)

	mux.HandleFunc("POST /api/shopping-cart/add-to-cart", h.handleAddToCart)
	mux.HandleFunc("POST /api/shopping-cart/add-total", h.handleComputeTotal)
	mux.HandleFunc("POST /api/shopping-cart/checkout", h.handleCheckout)
	mux.HandleFunc("GET /api/shopping-cart/open", h.handleListOpenCarts)
}

func (h *InventoryHandler) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var product domain.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := h.service.AddProduct(ctx, &product)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *InventoryHandler) handleGetAllProducts(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	products, err := h.service.GetAllProducts(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *InventoryHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid product id", http.StatusBadRequest)
		return
	}

	product, err := h.service.GetProductByID(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *InventoryHandler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cart, err := h.service.AddToCart(ctx, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *InventoryHandler) handleComputeTotal(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var ids []uint64
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	total, err := h.service.ComputeTotal(ctx, ids)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &application.TotalResponse{Total: total})
}

func (h *InventoryHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var ids []uint64
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Checkout(ctx, ids)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, application.ToCheckoutResponse(result))
}

func (h *InventoryHandler) handleListOpenCarts(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	carts, err := h.service.ListOpenCarts(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, carts)
}

// writeError 根据错误类型返回不同的 HTTP 状态码
func (h *InventoryHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientQuantity),
		errors.Is(err, domain.ErrInvalidInput):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyCheckedOut):
		statusCode = http.StatusConflict
	default:
		statusCode = http.StatusInternalServerError // 其他未知错误
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error")
	}
	http.Error(w, err.Error(), statusCode)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
