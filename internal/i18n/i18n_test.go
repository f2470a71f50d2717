package i18n

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMatchLocale(t *testing.T) {
	cases := map[string]string{
		"":                        LocaleZhCN,
		"en-US,en;q=0.9":          LocaleEnUS,
		"en":                      LocaleEnUS,
		"zh-CN,zh;q=0.9,en;q=0.8": LocaleZhCN,
		"###":                     LocaleZhCN,
	}
	for raw, want := range cases {
		if got := MatchLocale(raw); got != want {
			t.Fatalf("locale %q: want %s got %s", raw, want, got)
		}
	}
}

func TestResolveLocalePrefersQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/v1/cart?lang=en-US", nil)
	c.Request.Header.Set("Accept-Language", "zh-CN")
	if got := ResolveLocale(c); got != LocaleEnUS {
		t.Fatalf("query lang should win, got %s", got)
	}
}

func TestTFallback(t *testing.T) {
	if got := T(LocaleEnUS, "error.cart_not_found"); got != "Cart not found" {
		t.Fatalf("unexpected translation: %s", got)
	}
	if got := T("fr-FR", "error.cart_not_found"); got != "购物车不存在" {
		t.Fatalf("unknown locale should fallback to default, got %s", got)
	}
	if got := T(LocaleEnUS, "error.unknown_key"); got != "error.unknown_key" {
		t.Fatalf("missing key should return key, got %s", got)
	}
}

func TestLocalesHaveSameKeys(t *testing.T) {
	for key := range messages[LocaleZhCN] {
		if _, ok := messages[LocaleEnUS][key]; !ok {
			t.Fatalf("en-US missing key %s", key)
		}
	}
	for key := range messages[LocaleEnUS] {
		if _, ok := messages[LocaleZhCN][key]; !ok {
			t.Fatalf("zh-CN missing key %s", key)
		}
	}
}
