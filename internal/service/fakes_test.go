package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/overlay-relay/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	gets   int
	sets   int
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Ping(context.Context) error {
	return m.getErr
}

type recorder struct {
	mu     sync.Mutex
	events []domain.OverlayEvent
	err    error
}

func (r *recorder) RecordOverlayEvent(_ context.Context, e domain.OverlayEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

// blockingRecorder holds every delivery until release is closed
type blockingRecorder struct {
	mu      sync.Mutex
	events  int
	entered chan struct{}
	release chan struct{}
}

func newBlockingRecorder() *blockingRecorder {
	return &blockingRecorder{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (r *blockingRecorder) RecordOverlayEvent(_ context.Context, _ domain.OverlayEvent) error {
	select {
	case r.entered <- struct{}{}:
	default:
	}
	<-r.release
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events++
	return nil
}

func (r *blockingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events
}

type fakeSource struct {
	mu     sync.Mutex
	calls  int
	player *domain.PlayerRecord
	err    error
}

func (f *fakeSource) Search(_ context.Context, id string) (*domain.PlayerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := *f.player
	p.ID = id
	return &p, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// gatedSource blocks every search until release is closed and reports the
// context error it sees afterwards
type gatedSource struct {
	player  *domain.PlayerRecord
	entered chan struct{}
	release chan struct{}
}

func newGatedSource(player *domain.PlayerRecord) *gatedSource {
	return &gatedSource{
		player:  player,
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedSource) Search(ctx context.Context, id string) (*domain.PlayerRecord, error) {
	g.entered <- struct{}{}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := *g.player
	p.ID = id
	return &p, nil
}

var errBoom = errors.New("connection refused")
