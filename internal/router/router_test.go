package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lumen-shop/cart-service/internal/cache"

	"github.com/gin-gonic/gin"
)

func TestBuildAdminPermissionCatalog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	noop := func(c *gin.Context) {}
	r.GET("/api/v1/admin/carts", noop)
	r.GET("/api/v1/admin/carts/:user_id", noop)
	r.DELETE("/api/v1/admin/carts/:user_id/items", noop)
	r.GET("/api/v1/admin/authz/roles", noop)
	r.GET("/api/v1/cart", noop)

	items := buildAdminPermissionCatalog(r)
	if len(items) != 4 {
		t.Fatalf("catalog size want 4 got %d: %+v", len(items), items)
	}
	if items[0].Module != "authz" || items[0].Object != "/admin/authz/roles" {
		t.Fatalf("catalog should be sorted by module, got %+v", items[0])
	}
	for _, item := range items[1:] {
		if item.Module != "carts" {
			t.Fatalf("unexpected module %+v", item)
		}
		if !strings.HasPrefix(item.Permission, item.Method+":/admin/carts") {
			t.Fatalf("unexpected permission %+v", item)
		}
	}
}

func TestDeriveAdminPermissionModule(t *testing.T) {
	cases := map[string]string{
		"":                       "system",
		"/admin/carts/:user_id":  "carts",
		"/admin/cart-audit-logs": "cart-audit-logs",
		"/admin/authz/roles":     "authz",
		"/health":                "health",
	}
	for object, want := range cases {
		if got := deriveAdminPermissionModule(object); got != want {
			t.Fatalf("object %q: want %s got %s", object, want, got)
		}
	}
}

func TestHealthHandlerWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cache.UseClient(nil, "")

	r := gin.New()
	r.GET("/health", healthHandler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"redis":"disabled"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}
