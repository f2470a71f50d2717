package public

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lumen-shop/cart-service/internal/cache"
	"github.com/lumen-shop/cart-service/internal/catalog"
	"github.com/lumen-shop/cart-service/internal/http/response"
	"github.com/lumen-shop/cart-service/internal/models"
	"github.com/lumen-shop/cart-service/internal/provider"
	"github.com/lumen-shop/cart-service/internal/repository"
	"github.com/lumen-shop/cart-service/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type cartView struct {
	Owner       string       `json:"user_id"`
	TotalItems  int          `json:"total_items"`
	TotalAmount models.Money `json:"total_amount"`
	Items       []struct {
		ProductRef string `json:"product_id"`
		Quantity   int    `json:"quantity"`
	} `json:"items"`
}

func setupCartHandlerTest(t *testing.T) (*gin.Engine, *catalog.MemoryOracle) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:public_cart_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })

	oracle := catalog.NewMemoryOracle(
		catalog.Product{ID: "p1", Name: "Keyboard", Price: models.NewMoneyFromDecimal(decimal.RequireFromString("10.50")), Status: catalog.DefaultActiveStatus},
		catalog.Product{ID: "p2", Name: "Mouse", Price: models.NewMoneyFromDecimal(decimal.RequireFromString("3.00")), Status: catalog.DefaultActiveStatus},
	)
	repo := repository.NewCartRepository(db, 24*time.Hour)
	container := &provider.Container{
		Oracle:      oracle,
		CartRepo:    repo,
		Idempotency: cache.NewIdempotencyStore(time.Minute),
		CartService: service.NewCartService(repo, oracle, cache.NewLocalLocker(time.Second), service.CartOptions{}),
	}
	h := New(container)

	r := gin.New()
	group := r.Group("/api/v1/cart", func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set("user_id", uid)
		}
		c.Next()
	})
	group.GET("", h.GetCart)
	group.GET("/summary", h.GetCartSummary)
	group.POST("/add", h.AddCartItem)
	group.POST("/bulk-add", h.BulkAddCartItems)
	group.PUT("/item/:product_id", h.UpdateCartItem)
	group.DELETE("/item/:product_id", h.RemoveCartItem)
	group.DELETE("/clear", h.ClearCart)
	group.POST("/validate", h.ValidateCart)
	return r, oracle
}

func doCartRequest(t *testing.T, r *gin.Engine, method, path, user, body string, headers map[string]string) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func decodeCart(t *testing.T, env envelope) cartView {
	t.Helper()
	var cart cartView
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	return cart
}

func decodeErrorKind(t *testing.T, env envelope) string {
	t.Helper()
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	kind, _ := data["error_kind"].(string)
	return kind
}

func TestCartHandlerAddAndGet(t *testing.T) {
	r, _ := setupCartHandlerTest(t)

	env := doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", `{"product_id":"p1","quantity":2}`, nil)
	require.Equal(t, response.CodeOK, env.StatusCode, env.Msg)
	cart := decodeCart(t, env)
	assert.Equal(t, "u1", cart.Owner)
	assert.Equal(t, 2, cart.TotalItems)
	assert.Equal(t, "21.00", cart.TotalAmount.String())

	// 缺省数量为 1
	env = doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", `{"product_id":"p2"}`, nil)
	require.Equal(t, response.CodeOK, env.StatusCode, env.Msg)

	env = doCartRequest(t, r, http.MethodGet, "/api/v1/cart", "u1", "", nil)
	cart = decodeCart(t, env)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "p1", cart.Items[0].ProductRef)
	assert.Equal(t, "p2", cart.Items[1].ProductRef)
	assert.Equal(t, 3, cart.TotalItems)
	assert.Equal(t, "24.00", cart.TotalAmount.String())
}

func TestCartHandlerRequiresUser(t *testing.T) {
	r, _ := setupCartHandlerTest(t)
	env := doCartRequest(t, r, http.MethodGet, "/api/v1/cart", "", "", nil)
	assert.Equal(t, response.CodeUnauthorized, env.StatusCode)
}

func TestCartHandlerErrorMapping(t *testing.T) {
	r, oracle := setupCartHandlerTest(t)

	env := doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", `{"product_id":"p1","quantity":0}`, nil)
	assert.Equal(t, response.CodeBadRequest, env.StatusCode)
	assert.Equal(t, service.KindInvalidQuantity, decodeErrorKind(t, env))

	env = doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", `{"product_id":"missing"}`, nil)
	assert.Equal(t, response.CodeUnprocessable, env.StatusCode)
	assert.Equal(t, service.KindInvalidProduct, decodeErrorKind(t, env))

	env = doCartRequest(t, r, http.MethodPut, "/api/v1/cart/item/p1", "u2", `{"quantity":3}`, nil)
	assert.Equal(t, response.CodeNotFound, env.StatusCode)
	assert.Equal(t, service.KindNotFound, decodeErrorKind(t, env))

	oracle.Fail("p2", catalog.ErrUnavailable)
	env = doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", `{"product_id":"p2"}`, nil)
	assert.Equal(t, response.CodeBadGateway, env.StatusCode)
	assert.Equal(t, service.KindUpstream, decodeErrorKind(t, env))

	env = doCartRequest(t, r, http.MethodPut, "/api/v1/cart/item/p1", "u1", `{}`, nil)
	assert.Equal(t, response.CodeBadRequest, env.StatusCode)
}

func TestCartHandlerUpdateRemoveClear(t *testing.T) {
	r, _ := setupCartHandlerTest(t)
	doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", `{"product_id":"p1"}`, nil)
	doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", `{"product_id":"p2"}`, nil)

	env := doCartRequest(t, r, http.MethodPut, "/api/v1/cart/item/p1", "u1", `{"quantity":4}`, nil)
	require.Equal(t, response.CodeOK, env.StatusCode, env.Msg)
	assert.Equal(t, 5, decodeCart(t, env).TotalItems)

	env = doCartRequest(t, r, http.MethodDelete, "/api/v1/cart/item/p2", "u1", "", nil)
	require.Equal(t, response.CodeOK, env.StatusCode, env.Msg)
	assert.Len(t, decodeCart(t, env).Items, 1)

	env = doCartRequest(t, r, http.MethodDelete, "/api/v1/cart/clear", "u1", "", nil)
	require.Equal(t, response.CodeOK, env.StatusCode, env.Msg)
	cart := decodeCart(t, env)
	assert.Empty(t, cart.Items)
	assert.Equal(t, "0.00", cart.TotalAmount.String())

	env = doCartRequest(t, r, http.MethodGet, "/api/v1/cart/summary", "u1", "", nil)
	require.Equal(t, response.CodeOK, env.StatusCode, env.Msg)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, true, summary["is_empty"])
}

func TestCartHandlerBulkAdd(t *testing.T) {
	r, _ := setupCartHandlerTest(t)

	env := doCartRequest(t, r, http.MethodPost, "/api/v1/cart/bulk-add", "u1",
		`{"items":[{"product_id":"p1","quantity":1},{"product_id":"missing","quantity":1}]}`, nil)
	require.Equal(t, response.CodeOK, env.StatusCode, env.Msg)
	var outcome struct {
		Cart    cartView `json:"cart"`
		Results []struct {
			ProductRef string `json:"product_id"`
			Success    bool   `json:"success"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	require.Len(t, outcome.Results, 2)
	assert.True(t, outcome.Results[0].Success)
	assert.False(t, outcome.Results[1].Success)
	assert.Equal(t, 1, outcome.Cart.TotalItems)

	env = doCartRequest(t, r, http.MethodPost, "/api/v1/cart/bulk-add", "u1", `{"items":[]}`, nil)
	assert.Equal(t, response.CodeBadRequest, env.StatusCode)
}

func TestCartHandlerBulkAddDefaultsQuantity(t *testing.T) {
	r, _ := setupCartHandlerTest(t)

	env := doCartRequest(t, r, http.MethodPost, "/api/v1/cart/bulk-add", "u1",
		`{"items":[{"product_id":"p1"},{"product_id":"p2","quantity":2}]}`, nil)
	require.Equal(t, response.CodeOK, env.StatusCode, env.Msg)
	var outcome struct {
		Cart cartView `json:"cart"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	assert.Equal(t, 3, outcome.Cart.TotalItems)
	require.Len(t, outcome.Cart.Items, 2)
	assert.Equal(t, 1, outcome.Cart.Items[0].Quantity)

	env = doCartRequest(t, r, http.MethodPost, "/api/v1/cart/bulk-add", "u2",
		`{"items":[{"product_id":"p1","quantity":0}]}`, nil)
	assert.Equal(t, response.CodeBadRequest, env.StatusCode)
	assert.Equal(t, "invalid_quantity", decodeErrorKind(t, env))
}

func TestCartHandlerValidateReportsIssues(t *testing.T) {
	r, oracle := setupCartHandlerTest(t)
	doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", `{"product_id":"p1"}`, nil)
	oracle.Put(catalog.Product{ID: "p1", Name: "Keyboard", Price: models.NewMoneyFromDecimal(decimal.RequireFromString("12.00")), Status: catalog.DefaultActiveStatus})

	env := doCartRequest(t, r, http.MethodPost, "/api/v1/cart/validate", "u1", "", nil)
	require.Equal(t, response.CodeOK, env.StatusCode, env.Msg)
	var result struct {
		Valid  bool `json:"valid"`
		Issues []struct {
			Action string `json:"action"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.Valid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, service.IssueActionPriceUpdated, result.Issues[0].Action)
}

func TestCartHandlerIdempotencyKeyReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.UseClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { _ = cache.Close() })

	r, _ := setupCartHandlerTest(t)
	headers := map[string]string{"Idempotency-Key": "add-1"}
	body := `{"product_id":"p1","quantity":2}`

	first := doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", body, headers)
	require.Equal(t, response.CodeOK, first.StatusCode, first.Msg)
	second := doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", body, headers)
	require.Equal(t, response.CodeOK, second.StatusCode, second.Msg)
	assert.Equal(t, 2, decodeCart(t, second).TotalItems)

	env := doCartRequest(t, r, http.MethodGet, "/api/v1/cart", "u1", "", nil)
	assert.Equal(t, 2, decodeCart(t, env).TotalItems)

	reused := doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", `{"product_id":"p2"}`, headers)
	assert.Equal(t, response.CodeConflict, reused.StatusCode)

	tooLong := map[string]string{"Idempotency-Key": strings.Repeat("k", 200)}
	env = doCartRequest(t, r, http.MethodPost, "/api/v1/cart/add", "u1", body, tooLong)
	assert.Equal(t, response.CodeBadRequest, env.StatusCode)
}
