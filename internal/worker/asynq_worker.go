package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/lumen-shop/cart-service/internal/logger"
	"github.com/lumen-shop/cart-service/internal/models"
	"github.com/lumen-shop/cart-service/internal/provider"
	"github.com/lumen-shop/cart-service/internal/queue"
	"github.com/lumen-shop/cart-service/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCartPurgeExpired, c.handleCartPurgeExpired)
	mux.HandleFunc(queue.TaskCartClear, c.handleCartClear)
}

func (c *Consumer) handleCartPurgeExpired(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Container == nil || c.CartService == nil {
		logger.Debugw("worker_cart_purge_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CartPurgeExpiredPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_cart_purge_unmarshal_failed", "error", err)
			return err
		}
	}
	purged, err := c.CartService.PurgeExpired(ctx)
	if err != nil {
		logger.Warnw("worker_cart_purge_failed", "error", err)
		return err
	}
	logger.Infow("worker_cart_purge_done", "purged", purged, "operator_id", payload.OperatorID)

	operatorID := strings.TrimSpace(payload.OperatorID)
	if operatorID != "" && operatorID != "scheduler" {
		if err := c.CartAuditService.Record(ctx, service.CartAuditRecordInput{
			OperatorID: operatorID,
			Action:     service.CartAuditActionPurgeExpired,
			RequestID:  payload.RequestID,
			Detail:     models.JSON{"purged": purged},
		}); err != nil {
			logger.Warnw("worker_cart_purge_audit_failed", "operator_id", operatorID, "error", err)
		}
	}
	return nil
}

func (c *Consumer) handleCartClear(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Container == nil || c.CartService == nil {
		logger.Debugw("worker_cart_clear_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CartClearPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_cart_clear_unmarshal_failed", "error", err)
		return err
	}
	userID := strings.TrimSpace(payload.UserID)
	if userID == "" {
		logger.Debugw("worker_cart_clear_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	_, err := c.CartService.ClearCart(ctx, userID)
	switch {
	case err == nil:
		logger.Infow("worker_cart_clear_done", "user_id", userID, "order_id", payload.OrderID)
		return nil
	case errors.Is(err, service.ErrCartNotFound):
		logger.Debugw("worker_cart_clear_skip_not_found", "user_id", userID)
		return nil
	case errors.Is(err, service.ErrCartConflict):
		logger.Warnw("worker_cart_clear_conflict", "user_id", userID, "error", err)
		return err
	default:
		logger.Warnw("worker_cart_clear_failed", "user_id", userID, "error", err)
		return err
	}
}
