package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orderforge/api/internal/services"
)

type stubOrderService struct {
	services.OrderService

	promoteFn func(context.Context) (int, error)
	calls     atomic.Int64
}

func (s *stubOrderService) PromotePendingOrders(ctx context.Context) (int, error) {
	s.calls.Add(1)
	if s.promoteFn != nil {
		return s.promoteFn(ctx)
	}
	return 0, nil
}

func TestPromotionSweeperRequiresOrderService(t *testing.T) {
	if _, err := NewPromotionSweeper(PromotionSweeperDeps{}); err == nil {
		t.Fatalf("expected constructor error without an order service")
	}
}

func TestPromotionSweeperRunsUntilStopped(t *testing.T) {
	orders := &stubOrderService{
		promoteFn: func(context.Context) (int, error) { return 1, nil },
	}
	sweeper, err := NewPromotionSweeper(PromotionSweeperDeps{
		Orders:   orders,
		Interval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewPromotionSweeper: %v", err)
	}

	sweeper.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for orders.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sweeper never ran, calls=%d", orders.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	sweeper.Stop()

	settled := orders.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if orders.calls.Load() != settled {
		t.Fatalf("sweeper kept running after Stop")
	}
}

func TestPromotionSweeperSurvivesSweepErrors(t *testing.T) {
	orders := &stubOrderService{
		promoteFn: func(context.Context) (int, error) {
			return 0, errors.New("listing unavailable")
		},
	}
	sweeper, err := NewPromotionSweeper(PromotionSweeperDeps{
		Orders:   orders,
		Interval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewPromotionSweeper: %v", err)
	}

	sweeper.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for orders.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("sweeper stopped after an error, calls=%d", orders.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	sweeper.Stop()
}

func TestPromotionSweeperStopIsIdempotent(t *testing.T) {
	sweeper, err := NewPromotionSweeper(PromotionSweeperDeps{
		Orders:   &stubOrderService{},
		Interval: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewPromotionSweeper: %v", err)
	}

	sweeper.Stop()
	sweeper.Start(context.Background())
	sweeper.Stop()
	sweeper.Stop()
}
