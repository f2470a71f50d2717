package queue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/lumen-shop/cart-service/internal/config"
)

func TestDisabledClientRejectsEnqueue(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("disabled client should report disabled")
	}
	if err := client.EnqueueCartPurgeExpired(CartPurgeExpiredPayload{}); !errors.Is(err, ErrQueueDisabled) {
		t.Fatalf("expected ErrQueueDisabled, got %v", err)
	}
	if err := client.EnqueueCartClear(CartClearPayload{UserID: "u1"}, 0); !errors.Is(err, ErrQueueDisabled) {
		t.Fatalf("expected ErrQueueDisabled, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close disabled client failed: %v", err)
	}
}

func TestNewSchedulerDisabled(t *testing.T) {
	if _, err := NewScheduler(&config.QueueConfig{Enabled: false, PurgeCron: "@every 1h"}); !errors.Is(err, ErrQueueDisabled) {
		t.Fatalf("expected ErrQueueDisabled, got %v", err)
	}
	scheduler, err := NewScheduler(&config.QueueConfig{Enabled: true})
	if err != nil || scheduler != nil {
		t.Fatalf("empty cron should skip scheduler, got %v %v", scheduler, err)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, serverCfg := BuildServerConfig(&config.QueueConfig{Host: " redis ", Port: 6380, DB: 2})
	if opt.Addr != "redis:6380" || opt.DB != 2 {
		t.Fatalf("unexpected redis opt: %+v", opt)
	}
	if serverCfg.Concurrency != 10 || serverCfg.Queues[DefaultQueue] != 1 {
		t.Fatalf("unexpected server config: %+v", serverCfg)
	}
}

func TestCartClearTaskPayload(t *testing.T) {
	task, err := NewCartClearTask(CartClearPayload{UserID: "u1", OrderID: "o-9"})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskCartClear {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	var payload CartClearPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if payload.UserID != "u1" || payload.OrderID != "o-9" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
