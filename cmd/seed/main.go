package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/lumen-shop/cart-service/internal/authz"
	"github.com/lumen-shop/cart-service/internal/config"
	"github.com/lumen-shop/cart-service/internal/constants"
	"github.com/lumen-shop/cart-service/internal/logger"
	"github.com/lumen-shop/cart-service/internal/models"
	"github.com/lumen-shop/cart-service/internal/repository"
	"github.com/lumen-shop/cart-service/internal/service"

	"github.com/shopspring/decimal"
)

type seedProduct struct {
	ref    string
	name   string
	sku    string
	price  string
	status string
	image  string
}

var demoProducts = []seedProduct{
	{ref: "prod-keyboard", name: "机械键盘", sku: "KB-87-RED", price: "399.00", status: constants.ProductStatusActive, image: "https://img.example.com/keyboard.png"},
	{ref: "prod-mouse", name: "无线鼠标", sku: "MS-W1", price: "129.90", status: constants.ProductStatusActive, image: "https://img.example.com/mouse.png"},
	{ref: "prod-monitor", name: "27 寸显示器", sku: "MN-27-4K", price: "2199.00", status: constants.ProductStatusActive, image: "https://img.example.com/monitor.png"},
	{ref: "prod-headset", name: "降噪耳机", sku: "HS-ANC", price: "899.00", status: constants.ProductStatusInactive, image: "https://img.example.com/headset.png"},
	{ref: "prod-webcam", name: "高清摄像头", sku: "WC-1080", price: "259.00", status: constants.ProductStatusDiscontinued, image: "https://img.example.com/webcam.png"},
}

func main() {
	var (
		adminID  string
		userID   string
		tokenTTL time.Duration
	)
	flag.StringVar(&adminID, "admin", "1", "授予 cart_admin 角色的管理员 ID")
	flag.StringVar(&userID, "user", "demo-user", "生成联调令牌的用户 ID")
	flag.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "联调令牌有效期")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 商品目录，catalog.driver=db 时作为购物车的数据源
	ctx := context.Background()
	productRepo := repository.NewProductRepository(models.DB)
	for _, item := range demoProducts {
		product := &models.Product{
			Ref:         item.ref,
			Name:        item.name,
			SKU:         item.sku,
			PriceAmount: models.NewMoneyFromDecimal(decimal.RequireFromString(item.price)),
			Images:      models.StringArray{item.image},
			Status:      item.status,
		}
		if err := productRepo.Upsert(ctx, product); err != nil {
			stdLog.Printf("Failed to upsert product %s: %v", item.ref, err)
			continue
		}
		stdLog.Printf("Seeded product: %s (%s, %s)", item.ref, item.price, item.status)
	}

	// 预置角色并授予管理员
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}
	if err := authzService.SetAdminRoles(adminID, []string{authz.RoleCartAdmin}); err != nil {
		stdLog.Fatalf("Failed to assign admin roles: %v", err)
	}
	stdLog.Printf("Granted %s to admin %s", authz.RoleCartAdmin, adminID)

	// 联调令牌
	tokens := service.NewTokenService(cfg.UserJWT.SecretKey, cfg.AdminJWT.SecretKey)
	userToken, err := tokens.IssueUserToken(userID, tokenTTL)
	if err != nil {
		stdLog.Fatalf("Failed to issue user token: %v", err)
	}
	adminToken, err := tokens.IssueAdminToken(adminID, "seed-admin", []string{authz.RoleCartAdmin}, tokenTTL)
	if err != nil {
		stdLog.Fatalf("Failed to issue admin token: %v", err)
	}

	fmt.Println("Seed completed.")
	fmt.Printf("User token (%s):\n%s\n", userID, userToken)
	fmt.Printf("Admin token (%s):\n%s\n", adminID, adminToken)
}
