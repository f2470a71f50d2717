package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubService struct {
	name     string
	startErr error
	block    bool

	mu      sync.Mutex
	stopped bool
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.startErr
}

func (s *stubService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *stubService) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func TestRunnerStopsAllServicesOnFailure(t *testing.T) {
	failing := &stubService{name: "http", startErr: errors.New("bind failed")}
	blocking := &stubService{name: "worker", block: true}
	runner := NewRunner(failing, blocking)

	var order []string
	runner.AddCleanup(func() { order = append(order, "first") })
	runner.AddCleanup(func() { order = append(order, "second") })

	err := runner.Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "bind failed" {
		t.Fatalf("expected start error, got %v", err)
	}
	if !failing.isStopped() || !blocking.isStopped() {
		t.Fatalf("all services should be stopped")
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("cleanups should run in reverse order, got %v", order)
	}
}

func TestRunnerCanceledContextReturnsNil(t *testing.T) {
	blocking := &stubService{name: "http", block: true}
	runner := NewRunner(blocking)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := runner.Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("canceled context should return nil, got %v", err)
	}
	if !blocking.isStopped() {
		t.Fatalf("service should be stopped")
	}
}

func TestRunnerWithoutServices(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error for empty runner")
	}
}

func TestRunnerStopsOthersWhenServiceExits(t *testing.T) {
	exiting := &stubService{name: "oneshot"}
	blocking := &stubService{name: "http", block: true}
	runner := NewRunner(blocking, exiting)

	done := make(chan error, 1)
	go func() { done <- runner.Run(context.Background(), time.Second, nil) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("clean exit should return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop after a service exited")
	}
	if !blocking.isStopped() {
		t.Fatalf("blocking service should be stopped")
	}
}
