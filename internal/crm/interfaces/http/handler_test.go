package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/crm/internal/crm/application"
	"github.com/wyfcoding/crm/internal/crm/infrastructure/persistence/mysql"
	"github.com/wyfcoding/crm/pkg/db"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Detail  string          `json:"detail"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	d, err := db.Init(db.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, mysql.AutoMigrate(d.DB))

	svc := application.NewCRMService(
		mysql.NewCustomerRepository(d.DB),
		mysql.NewProductRepository(d.DB),
		mysql.NewOrderRepository(d.DB),
		mysql.NewTxManager(d.DB),
		application.Options{},
	)
	r := gin.New()
	NewCRMHandler(svc).RegisterRoutes(&r.RouterGroup)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func createdID(t *testing.T, env envelope, key string) uint {
	t.Helper()
	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &data))
	var entity struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data[key], &entity))
	require.NotZero(t, entity.ID)
	return entity.ID
}

func listTotal(t *testing.T, env envelope) (int, int64) {
	t.Helper()
	var data struct {
		Items      []json.RawMessage `json:"items"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return len(data.Items), data.Pagination.Total
}

func TestCustomerEndpoints(t *testing.T) {
	r := newRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/customers", gin.H{"name": "Alice", "email": "alice@example.com", "phone": "+1234567890"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	id := createdID(t, env, "customer")

	code, env = do(t, r, http.MethodPost, "/api/v1/customers", gin.H{"name": "Alice 2", "email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation failed", env.Message)
	assert.Contains(t, string(env.Data), "Email already exists")

	code, _ = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/customers/%d", id), nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/customers/%d", id), gin.H{"name": "Alice Smith"})
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "Alice Smith")

	code, _ = do(t, r, http.MethodGet, "/api/v1/customers/999", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodGet, "/api/v1/customers/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, r, http.MethodPost, "/api/v1/customers", gin.H{"name": "Bob", "email": "bob@example.com", "phone": "555-123-4567"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	bob := createdID(t, env, "customer")

	code, env = do(t, r, http.MethodGet, "/api/v1/customers?phone=%2B123", nil)
	require.Equal(t, http.StatusOK, code)
	n, total := listTotal(t, env)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), total)

	// 未编码的 "+" 与 %2B 等价
	code, env = do(t, r, http.MethodGet, "/api/v1/customers?phone=+123", nil)
	require.Equal(t, http.StatusOK, code)
	n, total = listTotal(t, env)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), total)
	assert.NotContains(t, string(env.Data), "bob@example.com")

	code, _ = do(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/customers/%d", bob), nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodGet, "/api/v1/customers?order_by=password", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid order_by", env.Message)

	code, env = do(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/customers/%d", id), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "along with 0 order(s)")
}

func TestBulkCustomers(t *testing.T) {
	r := newRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/customers/bulk", gin.H{"customers": []gin.H{
		{"name": "A", "email": "a@example.com"},
		{"name": "B", "email": "b@example.com"},
		{"name": "C", "email": "c@example.com"},
		{"name": "A again", "email": "a@example.com"},
	}})
	require.Equal(t, http.StatusOK, code)

	var res application.BulkCustomerResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, 4, res.TotalCount)
	assert.Equal(t, []string{"Row 4: Email a@example.com already exists"}, res.Errors)
}

func TestOrderEndpoints(t *testing.T) {
	r := newRouter(t)

	_, env := do(t, r, http.MethodPost, "/api/v1/customers", gin.H{"name": "Alice", "email": "alice@example.com"})
	customerID := createdID(t, env, "customer")

	code, env := do(t, r, http.MethodPost, "/api/v1/products", gin.H{"name": "A", "price": "12.50", "stock": 1})
	require.Equal(t, http.StatusCreated, code, env.Message)
	a := createdID(t, env, "product")
	_, env = do(t, r, http.MethodPost, "/api/v1/products", gin.H{"name": "B", "price": 3, "stock": 0})
	b := createdID(t, env, "product")

	code, env = do(t, r, http.MethodPost, "/api/v1/orders", gin.H{"customer_id": customerID, "product_ids": []uint{a, b}})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Insufficient stock", env.Message)

	code, env = do(t, r, http.MethodPost, "/api/v1/orders", gin.H{
		"customer_id": customerID,
		"items":       []gin.H{{"product_id": a, "quantity": 1}},
		"order_date":  "2024-05-01T15:00:00Z",
	})
	require.Equal(t, http.StatusCreated, code, string(env.Data))
	orderID := createdID(t, env, "order")

	code, env = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", orderID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"total_amount":"12.5"`)

	code, env = do(t, r, http.MethodGet, "/api/v1/orders?date_lte=2024-05-01", nil)
	require.Equal(t, http.StatusOK, code)
	n, _ := listTotal(t, env)
	assert.Equal(t, 1, n)

	code, env = do(t, r, http.MethodGet, "/api/v1/orders?date_gte=2024-05-02", nil)
	require.Equal(t, http.StatusOK, code)
	n, _ = listTotal(t, env)
	assert.Zero(t, n)

	code, env = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/orders?product_id=%d&customer_name=ali", a), nil)
	require.Equal(t, http.StatusOK, code)
	n, _ = listTotal(t, env)
	assert.Equal(t, 1, n)

	code, _ = do(t, r, http.MethodGet, "/api/v1/orders?date_gte=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodGet, "/api/v1/orders/12345", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = do(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", a), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "referenced by existing orders")

	code, env = do(t, r, http.MethodGet, "/api/v1/reports/summary", nil)
	require.Equal(t, http.StatusOK, code)
	var report struct {
		TotalCustomers int64  `json:"total_customers"`
		TotalOrders    int64  `json:"total_orders"`
		TotalRevenue   string `json:"total_revenue"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, int64(1), report.TotalCustomers)
	assert.Equal(t, int64(1), report.TotalOrders)
	assert.Equal(t, "12.5", report.TotalRevenue)
}

func TestProductEndpoints(t *testing.T) {
	r := newRouter(t)

	for i, stock := range []int{0, 9, 10} {
		code, env := do(t, r, http.MethodPost, "/api/v1/products", gin.H{"name": fmt.Sprintf("P%d", i), "price": "1.00", "stock": stock})
		require.Equal(t, http.StatusCreated, code, env.Message)
	}

	code, env := do(t, r, http.MethodPost, "/api/v1/products", gin.H{"name": "Bad", "price": "-1", "stock": -1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "Price must be positive")
	assert.Contains(t, string(env.Data), "Stock cannot be negative")

	code, env = do(t, r, http.MethodGet, "/api/v1/products?low_stock=true", nil)
	require.Equal(t, http.StatusOK, code)
	n, total := listTotal(t, env)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), total)

	code, env = do(t, r, http.MethodGet, "/api/v1/products?page=2&page_size=2&order_by=-stock", nil)
	require.Equal(t, http.StatusOK, code)
	n, total = listTotal(t, env)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(3), total)

	code, _ = do(t, r, http.MethodGet, "/api/v1/products?stock_gte=many", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, r, http.MethodPost, "/api/v1/products/restock?increment=5", nil)
	require.Equal(t, http.StatusOK, code)
	var restock application.RestockResult
	require.NoError(t, json.Unmarshal(env.Data, &restock))
	assert.ElementsMatch(t, []string{"P0 (stock: 5)", "P1 (stock: 14)"}, restock.UpdatedProducts)

	code, _ = do(t, r, http.MethodPost, "/api/v1/products/restock?increment=0", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, r, http.MethodPatch, "/api/v1/products/1", gin.H{"stock": 42})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"stock":42`)
}
