package interfaces

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"inventory/internal/service/inventory/application"
	"inventory/internal/service/inventory/domain"
	"inventory/internal/service/inventory/infrastructure"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := infrastructure.NewMetricsEventPublisher(reg)
	require.NoError(t, err)

	products := infrastructure.NewMemoryProductRepository()
	carts := infrastructure.NewMemoryCartRepository(products)
	svc := application.NewInventoryService(products, carts, infrastructure.NewMemoryStockLocker(), metrics, noop.NewTracerProvider().Tracer("test"))

	mux := http.NewServeMux()
	NewInventoryHandler(svc, reg).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestInventoryHandler_ClaimAndCheckout(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/api/inventory/add-product", map[string]interface{}{
		"code": "SKU1", "name": "Widget", "wholesalePrice": "2.00", "retailPrice": "5.00", "quantity": 10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	product := decode[domain.Product](t, resp)
	require.NotZero(t, product.ID)

	resp = postJSON(t, srv, "/api/shopping-cart/add-to-cart", application.AddToCartRequest{ProductID: product.ID, PurchaseQuantity: 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := decode[domain.Cart](t, resp)
	assert.True(t, cart.TotalAmount.Equal(decimal.RequireFromString("15.00")))

	resp = postJSON(t, srv, "/api/shopping-cart/add-total", []uint64{cart.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	total := decode[application.TotalResponse](t, resp)
	assert.True(t, total.Total.Equal(decimal.RequireFromString("15.00")))

	resp = postJSON(t, srv, "/api/shopping-cart/checkout", []uint64{cart.ID, cart.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[application.CheckoutResponse](t, resp)
	require.Len(t, out.Products, 1)
	assert.Equal(t, 7, out.Products[0].Quantity)
	require.Len(t, out.Messages, 1)
	assert.Contains(t, out.Messages[0], "is already checked out")

	resp = postJSON(t, srv, "/api/shopping-cart/add-to-cart", application.AddToCartRequest{CartID: cart.ID, ProductID: product.ID, PurchaseQuantity: 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `inventory_checkout_outcomes_total{outcome="DEDUCTED"} 1`)
}

func TestInventoryHandler_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/api/inventory/add-product", map[string]interface{}{"code": "SKU1", "retailPrice": "1", "quantity": 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	product := decode[domain.Product](t, resp)

	cases := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"insufficient", "/api/shopping-cart/add-to-cart", application.AddToCartRequest{ProductID: product.ID, PurchaseQuantity: 2}, http.StatusBadRequest},
		{"invalid quantity", "/api/shopping-cart/add-to-cart", application.AddToCartRequest{ProductID: product.ID, PurchaseQuantity: 0}, http.StatusBadRequest},
		{"missing product", "/api/shopping-cart/add-to-cart", application.AddToCartRequest{ProductID: 404, PurchaseQuantity: 1}, http.StatusNotFound},
		{"missing cart on total", "/api/shopping-cart/add-total", []uint64{404}, http.StatusNotFound},
		{"missing cart on checkout", "/api/shopping-cart/checkout", []uint64{404}, http.StatusNotFound},
		{"negative price", "/api/inventory/add-product", map[string]interface{}{"code": "X", "retailPrice": "-1"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv, tc.path, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestInventoryHandler_GetProduct(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/inventory/product/abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/inventory/product/9")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/inventory/add-product", "application/json", strings.NewReader(`{not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInventoryHandler_ListOpenCarts(t *testing.T) {
	srv := newTestServer(t)
	product := decode[domain.Product](t, postJSON(t, srv, "/api/inventory/add-product", map[string]interface{}{"code": "SKU1", "retailPrice": "1", "quantity": 5}))
	postJSON(t, srv, "/api/shopping-cart/add-to-cart", application.AddToCartRequest{ProductID: product.ID, PurchaseQuantity: 1})

	resp, err := http.Get(srv.URL + "/api/shopping-cart/open")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	carts := decode[[]domain.Cart](t, resp)
	require.Len(t, carts, 1)
	assert.Equal(t, product.ID, carts[0].Product.ID)
}
