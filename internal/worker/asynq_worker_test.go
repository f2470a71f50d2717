package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/lumen-shop/cart-service/internal/cache"
	"github.com/lumen-shop/cart-service/internal/catalog"
	"github.com/lumen-shop/cart-service/internal/models"
	"github.com/lumen-shop/cart-service/internal/provider"
	"github.com/lumen-shop/cart-service/internal/queue"
	"github.com/lumen-shop/cart-service/internal/repository"
	"github.com/lumen-shop/cart-service/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupConsumerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	oracle := catalog.NewMemoryOracle(catalog.Product{
		ID:     "p1",
		Name:   "测试商品",
		Price:  models.NewMoneyFromDecimal(decimal.RequireFromString("9.90")),
		Status: catalog.DefaultActiveStatus,
	})
	repo := repository.NewCartRepository(db, 30*24*time.Hour)
	container := &provider.Container{
		CartService:      service.NewCartService(repo, oracle, cache.NewLocalLocker(time.Second), service.CartOptions{}),
		CartAuditService: service.NewCartAuditService(repository.NewCartAuditLogRepository(db)),
	}
	return NewConsumer(container), db
}

func TestHandleCartClear(t *testing.T) {
	consumer, _ := setupConsumerTest(t)
	ctx := context.Background()
	if _, err := consumer.CartService.AddToCart(ctx, "u1", "p1", 2); err != nil {
		t.Fatalf("add to cart failed: %v", err)
	}

	task, err := queue.NewCartClearTask(queue.CartClearPayload{UserID: "u1", OrderID: "o-1"})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if err := consumer.handleCartClear(ctx, task); err != nil {
		t.Fatalf("handle clear failed: %v", err)
	}
	cart, err := consumer.CartService.FindCart(ctx, "u1")
	if err != nil {
		t.Fatalf("find cart failed: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatalf("cart should be cleared: %+v", cart.Items)
	}
}

func TestHandleCartClearSkipsMissingCart(t *testing.T) {
	consumer, _ := setupConsumerTest(t)
	task, err := queue.NewCartClearTask(queue.CartClearPayload{UserID: "ghost"})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if err := consumer.handleCartClear(context.Background(), task); err != nil {
		t.Fatalf("missing cart should not be retried: %v", err)
	}
}

func TestHandleCartClearRejectsBadPayload(t *testing.T) {
	consumer, _ := setupConsumerTest(t)
	task := asynq.NewTask(queue.TaskCartClear, []byte("{"))
	if err := consumer.handleCartClear(context.Background(), task); err == nil {
		t.Fatalf("malformed payload should fail")
	}
}

func TestHandleCartPurgeExpiredRecordsAudit(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	body, _ := json.Marshal(queue.CartPurgeExpiredPayload{OperatorID: "a1", RequestID: "req-1"})
	task := asynq.NewTask(queue.TaskCartPurgeExpired, body)
	if err := consumer.handleCartPurgeExpired(context.Background(), task); err != nil {
		t.Fatalf("handle purge failed: %v", err)
	}

	var logs []models.CartAuditLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatalf("load audit logs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != service.CartAuditActionPurgeExpired || logs[0].RequestID != "req-1" {
		t.Fatalf("unexpected audit logs: %+v", logs)
	}
}

func TestRegisterIgnoresNil(t *testing.T) {
	var consumer *Consumer
	consumer.Register(asynq.NewServeMux())
}
