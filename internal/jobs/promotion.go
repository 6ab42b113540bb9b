package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orderforge/api/internal/services"
)

const defaultSweepInterval = 5 * time.Minute

// PromotionSweeperDeps enumerates collaborators required to construct the sweeper.
type PromotionSweeperDeps struct {
	Orders   services.OrderService
	Interval time.Duration
	Logger   *zap.Logger
}

// PromotionSweeper periodically promotes PENDING orders to PROCESSING.
type PromotionSweeper struct {
	orders   services.OrderService
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPromotionSweeper wires dependencies into a PromotionSweeper.
func NewPromotionSweeper(deps PromotionSweeperDeps) (*PromotionSweeper, error) {
	if deps.Orders == nil {
		return nil, errors.New("promotion sweeper: order service is required")
	}

	interval := deps.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PromotionSweeper{
		orders:   deps.Orders,
		interval: interval,
		logger:   logger,
	}, nil
}

// Start launches the background sweep loop. It returns immediately; the loop
// runs until Stop is called or the supplied context is cancelled.
func (s *PromotionSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(loopCtx, done)
}

// Stop cancels the sweep loop and waits for the in-flight sweep to finish.
func (s *PromotionSweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *PromotionSweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("promotion sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("promotion sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *PromotionSweeper) sweep(ctx context.Context) {
	started := time.Now()
	promoted, err := s.orders.PromotePendingOrders(ctx)
	if err != nil {
		s.logger.Error("promotion sweep failed", zap.Error(err))
		return
	}
	if promoted > 0 {
		s.logger.Info("promotion sweep finished",
			zap.Int("promoted", promoted),
			zap.Duration("elapsed", time.Since(started)),
		)
	}
}
