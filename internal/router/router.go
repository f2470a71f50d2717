package router

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/lumen-shop/cart-service/internal/authz"
	"github.com/lumen-shop/cart-service/internal/cache"
	"github.com/lumen-shop/cart-service/internal/config"
	adminhandlers "github.com/lumen-shop/cart-service/internal/http/handlers/admin"
	publichandlers "github.com/lumen-shop/cart-service/internal/http/handlers/public"
	"github.com/lumen-shop/cart-service/internal/http/response"
	"github.com/lumen-shop/cart-service/internal/logger"
	"github.com/lumen-shop/cart-service/internal/provider"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按用户侧/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	cartRule := CartRateLimitRule(cfg.Security.CartRateLimit, cfg.Redis.Prefix)
	cartLimiter := RateLimitMiddleware(cache.Client(), cartRule, KeyByOwner)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 购物车接口（需鉴权）
		cart := apiV1.Group("/cart")
		cart.Use(UserJWTAuthMiddleware(c.TokenService))
		{
			cart.GET("", publicHandler.GetCart)
			cart.GET("/summary", publicHandler.GetCartSummary)
			cart.POST("/add", cartLimiter, publicHandler.AddCartItem)
			cart.POST("/bulk-add", cartLimiter, publicHandler.BulkAddCartItems)
			cart.PUT("/item/:product_id", cartLimiter, publicHandler.UpdateCartItem)
			cart.DELETE("/item/:product_id", cartLimiter, publicHandler.RemoveCartItem)
			cart.DELETE("/clear", cartLimiter, publicHandler.ClearCart)
			cart.POST("/validate", publicHandler.ValidateCart)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		authorized := admin.Use(AdminJWTAuthMiddleware(c.TokenService), AdminRBACMiddleware(c.AuthzService))
		{
			// 购物车运维
			authorized.GET("/carts", adminHandler.ListCarts)
			authorized.POST("/carts/purge-expired", adminHandler.PurgeExpiredCarts)
			authorized.GET("/carts/:user_id", adminHandler.GetCart)
			authorized.POST("/carts/:user_id/validate", adminHandler.ValidateCart)
			authorized.DELETE("/carts/:user_id/items", adminHandler.ClearCart)
			authorized.GET("/cart-audit-logs", adminHandler.ListCartAuditLogs)

			// 权限管理
			authorized.GET("/authz/me", adminHandler.GetAuthzMe)
			authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
			authorized.POST("/authz/roles", adminHandler.CreateAuthzRole)
			authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
			authorized.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
			authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
			authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
			authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminPermissionCatalog(r))
			})
		}
	}

	// 健康检查
	r.GET("/health", healthHandler)

	return r
}

func healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	redisStatus := "disabled"
	if cache.Enabled() {
		redisStatus = "ok"
		if err := cache.Ping(ctx); err != nil {
			logger.Warnw("health_redis_ping_failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "down"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": redisStatus})
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

// deriveAdminPermissionModule /admin/carts/:user_id -> carts
func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 || segments[0] != "admin" {
		return segments[0]
	}
	return segments[1]
}
