package queue

import (
	"encoding/json"

	"github.com/lumen-shop/cart-service/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCartPurgeExpired 过期购物车清理任务
	TaskCartPurgeExpired = constants.TaskCartPurgeExpired
	// TaskCartClear 清空指定用户购物车，例如下单完成后
	TaskCartClear = constants.TaskCartClear
)

// CartPurgeExpiredPayload 过期清理任务载荷
type CartPurgeExpiredPayload struct {
	OperatorID string `json:"operator_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// CartClearPayload 清空购物车任务载荷
type CartClearPayload struct {
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id,omitempty"`
}

// NewCartPurgeExpiredTask 创建过期清理任务
func NewCartPurgeExpiredTask(payload CartPurgeExpiredPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCartPurgeExpired, body), nil
}

// NewCartClearTask 创建清空购物车任务
func NewCartClearTask(payload CartClearPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCartClear, body), nil
}
