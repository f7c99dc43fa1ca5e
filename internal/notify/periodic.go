package notify

import (
	"context"
	"sync"
	"time"

	"hostconfd/pkg/logging"
)

// Periodic is the source name the daemon's periodic ticker publishes.
const Periodic = "periodic"

// PeriodicSource publishes its name on a fixed interval. Reconcilers that
// must revalidate host state nothing notifies about subscribe to it.
type PeriodicSource struct {
	name     string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeriodicSource creates a ticker source. A non-positive interval
// produces a source that never fires.
func NewPeriodicSource(name string, interval time.Duration) *PeriodicSource {
	return &PeriodicSource{name: name, interval: interval}
}

func (s *PeriodicSource) Name() string { return s.name }

func (s *PeriodicSource) Start(ctx context.Context, pub Publisher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.interval <= 0 {
		return nil
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pub.Publish(s.name)
			}
		}
	}()

	logging.Debug("PeriodicSource", "Publishing %s every %s", s.name, s.interval)
	return nil
}

func (s *PeriodicSource) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
	return nil
}
