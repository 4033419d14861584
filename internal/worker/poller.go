package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/overlay-relay/internal/domain"
)

// msgUnreachable is shown while the relay cannot be reached
const msgUnreachable = "Cannot reach the server. Check your connection."

// StateReader fetches the published state of a slot
type StateReader interface {
	ReadState(ctx context.Context, slot domain.Slot) (domain.OverlayState, error)
}

// Snapshot is what a display currently holds for its slot
type Snapshot struct {
	Slot            domain.Slot
	State           domain.OverlayState
	ConnectionError string
}

// Poller periodically reads one slot's state on behalf of a display. It keeps
// the last good state when a poll fails.
type Poller struct {
	reader   StateReader
	slot     domain.Slot
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	onUpdate func(Snapshot)

	mu       sync.Mutex
	state    domain.OverlayState
	connErr  string
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a poller for slot
func NewPoller(
	reader StateReader,
	slot domain.Slot,
	interval time.Duration,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		reader:   reader,
		slot:     slot,
		interval: interval,
		clock:    clock,
		logger:   logger.With("slot", slot),
		state:    domain.EmptyOverlayState(),
		doneCh:   make(chan struct{}),
	}
}

// OnUpdate registers a callback invoked after every completed poll. Must be
// called before Start.
func (p *Poller) OnUpdate(fn func(Snapshot)) {
	p.onUpdate = fn
}

// Start polls immediately and then once per interval until Stop or ctx ends.
// A poller runs at most once.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.Info("overlay poller started", "interval", p.interval)

	go p.run(runCtx)
	return nil
}

// Stop cancels the timer and any in-flight poll. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		started := p.started
		cancel := p.cancel
		p.mu.Unlock()

		if !started {
			return
		}
		cancel()
		<-p.doneCh
		p.logger.Info("overlay poller stopped")
	})
}

// Snapshot returns the currently held state
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{Slot: p.slot, State: p.state, ConnectionError: p.connErr}
}

// run is the main poll loop
func (p *Poller) run(ctx context.Context) {
	defer close(p.doneCh)

	p.poll(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.poll(ctx)
		}
	}
}

// poll performs one read and applies its outcome
func (p *Poller) poll(ctx context.Context) {
	state, err := p.reader.ReadState(ctx, p.slot)

	p.mu.Lock()
	if p.stopped || ctx.Err() != nil {
		// torn down while the read was in flight
		p.mu.Unlock()
		return
	}
	if err == nil {
		p.state = state
		p.connErr = ""
	} else {
		p.connErr = connectionMessage(err)
	}
	snap := Snapshot{Slot: p.slot, State: p.state, ConnectionError: p.connErr}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("overlay poll failed", "error", err)
	}
	if p.onUpdate != nil {
		p.onUpdate(snap)
	}
}

func connectionMessage(err error) string {
	if errors.Is(err, domain.ErrServerUnreachable) {
		return msgUnreachable
	}
	return err.Error()
}
