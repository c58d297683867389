package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/demand"
)

// DefaultInterval matches the poll period of the original status helper.
const DefaultInterval = 3 * time.Second

// Subscription fans status snapshots out to subscribers. The polling ticker
// runs only while at least one subscriber is attached.
type Subscription struct {
	sampler  Sampler
	interval time.Duration
	guard    *demand.Guard
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[chan SystemStatus]struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Subscription.
type Option func(*Subscription)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Subscription) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger configures the subscription logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Subscription) {
		s.logger = logger
	}
}

// NewSubscription creates an idle subscription over sampler.
func NewSubscription(sampler Sampler, opts ...Option) *Subscription {
	s := &Subscription{
		sampler:  sampler,
		interval: DefaultInterval,
		logger:   logging.NewNop(),
		subs:     make(map[chan SystemStatus]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.guard = demand.NewGuard(s.start, s.halt)
	return s
}

// Subscribe attaches a listener. The returned cancel detaches it and closes
// the channel; it is safe to call more than once.
func (s *Subscription) Subscribe() (<-chan SystemStatus, func()) {
	ch := make(chan SystemStatus, 4)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	release := s.guard.Acquire()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			close(ch)
			s.mu.Unlock()
			release()
		})
	}
}

// Running reports whether the poller is active.
func (s *Subscription) Running() bool {
	return s.guard.Active()
}

// Wait blocks until the last poller goroutine has exited.
func (s *Subscription) Wait() {
	s.wg.Wait()
}

func (s *Subscription) start() {
	stop := make(chan struct{})
	s.stop = stop
	s.wg.Add(1)
	go s.poll(stop)
	s.logger.Debug("status polling started", "interval", s.interval)
}

func (s *Subscription) halt() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.logger.Debug("status polling stopped")
}

func (s *Subscription) poll(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			st, err := s.sampler.Sample(ctx)
			if err != nil {
				s.logger.Warn("status sample failed", "error", err)
				continue
			}
			s.broadcast(st)
		}
	}
}

func (s *Subscription) broadcast(st SystemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- st:
		default:
			// Drop the snapshot for slow listeners
		}
	}
}
