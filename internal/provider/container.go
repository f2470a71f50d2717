package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lumen-shop/cart-service/internal/authz"
	"github.com/lumen-shop/cart-service/internal/cache"
	"github.com/lumen-shop/cart-service/internal/catalog"
	"github.com/lumen-shop/cart-service/internal/config"
	"github.com/lumen-shop/cart-service/internal/constants"
	"github.com/lumen-shop/cart-service/internal/logger"
	"github.com/lumen-shop/cart-service/internal/models"
	"github.com/lumen-shop/cart-service/internal/queue"
	"github.com/lumen-shop/cart-service/internal/repository"
	"github.com/lumen-shop/cart-service/internal/service"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"
)

const mongoConnectTimeout = 10 * time.Second

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	MongoClient *mongo.Client

	// Infrastructure
	Oracle      catalog.Oracle
	Locker      cache.Locker
	Idempotency *cache.IdempotencyStore

	// Repositories
	CartRepo         repository.CartRepository
	ProductRepo      repository.ProductRepository
	CartAuditLogRepo repository.CartAuditLogRepository

	// Services
	AuthzService     *authz.Service
	TokenService     *service.TokenService
	CartService      *service.CartService
	CartAuditService *service.CartAuditService
}

// NewContainer 初始化容器，models.DB 需已初始化
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	if err := c.initRepositories(models.DB); err != nil {
		c.Close()
		return nil, err
	}

	// 2. 初始化基础设施
	if err := c.initInfrastructure(); err != nil {
		c.Close()
		return nil, err
	}

	// 3. 初始化 Services
	if err := c.initServices(models.DB); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Container) initRepositories(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	ttl := c.Config.Cart.TTL()
	c.ProductRepo = repository.NewProductRepository(db)
	c.CartAuditLogRepo = repository.NewCartAuditLogRepository(db)

	if !c.Config.Database.IsMongo() {
		c.CartRepo = repository.NewCartRepository(db, ttl)
		return nil
	}

	mongoCfg := c.Config.Database.Mongo
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	client, err := repository.ConnectMongo(ctx, mongoCfg.URI)
	if err != nil {
		return fmt.Errorf("connect mongo failed: %w", err)
	}
	c.MongoClient = client
	mongoRepo := repository.NewMongoCartRepository(client.Database(mongoCfg.Database), mongoCfg.Collection, ttl)
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure mongo indexes failed: %w", err)
	}
	c.CartRepo = mongoRepo
	logger.Infow("provider_cart_store_mongo", "database", mongoCfg.Database, "collection", mongoCfg.Collection)
	return nil
}

func (c *Container) initInfrastructure() error {
	cartCfg := c.Config.Cart
	c.Locker = cache.NewOwnerLocker(
		time.Duration(cartCfg.LockTTLMS)*time.Millisecond,
		time.Duration(cartCfg.LockWaitMS)*time.Millisecond,
	)
	c.Idempotency = cache.NewIdempotencyStore(time.Duration(cartCfg.IdempotencyTTLSeconds) * time.Second)

	oracle, err := c.buildOracle()
	if err != nil {
		return err
	}
	c.Oracle = oracle
	return nil
}

func (c *Container) buildOracle() (catalog.Oracle, error) {
	catalogCfg := c.Config.Catalog
	driver := strings.ToLower(strings.TrimSpace(catalogCfg.Driver))
	switch driver {
	case "", constants.CatalogDriverHTTP:
		return catalog.NewHTTPOracle(catalog.HTTPOptions{
			BaseURL:      catalogCfg.BaseURL,
			Timeout:      catalogCfg.Timeout(),
			ActiveStatus: catalogCfg.ActiveStatus,
		})
	case constants.CatalogDriverDB:
		return catalog.NewStoreOracle(c.ProductRepo, catalogCfg.ActiveStatus), nil
	case constants.CatalogDriverMemory:
		logger.Warnw("provider_catalog_memory_driver", "hint", "products must be registered in process")
		return catalog.NewMemoryOracle(), nil
	default:
		return nil, fmt.Errorf("unsupported catalog driver: %s", catalogCfg.Driver)
	}
}

func (c *Container) initServices(db *gorm.DB) error {
	authzService, err := authz.NewService(db)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return err
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		return err
	}

	c.TokenService = service.NewTokenService(c.Config.UserJWT.SecretKey, c.Config.AdminJWT.SecretKey)
	c.CartService = service.NewCartService(c.CartRepo, c.Oracle, c.Locker, service.CartOptions{
		MaxQuantity:  c.Config.Cart.MaxQuantity,
		BulkMaxItems: c.Config.Cart.BulkMaxItems,
	})
	c.CartAuditService = service.NewCartAuditService(c.CartAuditLogRepo)
	return nil
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if c.MongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.MongoClient.Disconnect(ctx); err != nil {
			logger.Warnw("provider_close_mongo_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
