package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/overlay-relay/internal/config"
	"github.com/overlay-relay/internal/domain"
)

// StateStore is the remote key-value store holding one document per slot
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
}

// EventRecorder receives every accepted overlay write
type EventRecorder interface {
	RecordOverlayEvent(ctx context.Context, event domain.OverlayEvent) error
}

// HistoryReader lists recorded overlay writes, newest first
type HistoryReader interface {
	ListOverlayEvents(ctx context.Context, slot domain.Slot, limit int) ([]domain.OverlayEvent, error)
}

// OverlayService relays overlay state between operators and displays
type OverlayService struct {
	store     StateStore
	keyPrefix string
	config    *config.OverlayConfig
	history   HistoryReader
	clock     clockwork.Clock
	logger    *slog.Logger

	recordMu  sync.RWMutex
	recorders []EventRecorder
	events    chan domain.OverlayEvent
	startOnce sync.Once
	closeOnce sync.Once
	closed    bool
	doneCh    chan struct{}
}

// NewOverlayService creates a new overlay relay service
func NewOverlayService(
	store StateStore,
	storeCfg *config.StoreConfig,
	overlayCfg *config.OverlayConfig,
	clock clockwork.Clock,
	logger *slog.Logger,
) *OverlayService {
	return &OverlayService{
		store:     store,
		keyPrefix: storeCfg.KeyPrefix,
		config:    overlayCfg,
		clock:     clock,
		logger:    logger,
		events:    make(chan domain.OverlayEvent, overlayCfg.RecordQueueSize),
		doneCh:    make(chan struct{}),
	}
}

// AddRecorder registers a best-effort sink for accepted writes. Events are
// delivered by a background worker so a slow sink never delays a write.
func (s *OverlayService) AddRecorder(r EventRecorder) {
	s.recordMu.Lock()
	s.recorders = append(s.recorders, r)
	s.recordMu.Unlock()

	s.startOnce.Do(func() {
		go s.runRecorders()
	})
}

// Close stops accepting events and waits for queued ones to be delivered
func (s *OverlayService) Close() {
	s.closeOnce.Do(func() {
		s.recordMu.Lock()
		s.closed = true
		started := len(s.recorders) > 0
		close(s.events)
		s.recordMu.Unlock()

		if started {
			<-s.doneCh
		}
	})
}

// SetHistory enables history queries
func (s *OverlayService) SetHistory(h HistoryReader) {
	s.history = h
}

// Key returns the store key for a slot
func (s *OverlayService) Key(slot domain.Slot) string {
	return s.keyPrefix + string(slot)
}

// Read returns the stored document for slot, or the empty state when the slot
// has never been written.
func (s *OverlayService) Read(ctx context.Context, slot domain.Slot) (json.RawMessage, error) {
	key := s.Key(slot)
	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrStoreUnavailable, key, err)
	}
	if !found {
		return domain.EmptyOverlayStateJSON, nil
	}
	if !json.Valid(data) {
		s.logger.Warn("stored overlay state is not valid json, serving empty state", "key", key)
		return domain.EmptyOverlayStateJSON, nil
	}
	return json.RawMessage(data), nil
}

// Write stores body byte-for-byte (surrounding whitespace trimmed) under slot's
// key and echoes it back. body must be a JSON object; its shape is otherwise
// not checked.
func (s *OverlayService) Write(ctx context.Context, slot domain.Slot, body []byte) (json.RawMessage, error) {
	if !domain.IsJSONObject(body) {
		return nil, domain.ErrInvalidState
	}

	stored := append([]byte(nil), bytes.TrimSpace(body)...)

	key := s.Key(slot)
	if err := s.store.Set(ctx, key, stored); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %v", domain.ErrStoreUnavailable, key, err)
	}

	s.record(slot, stored)

	return json.RawMessage(stored), nil
}

// record queues the write for the recorders. A full queue drops the event.
func (s *OverlayService) record(slot domain.Slot, payload []byte) {
	s.recordMu.RLock()
	defer s.recordMu.RUnlock()
	if len(s.recorders) == 0 || s.closed {
		return
	}

	state := domain.DecodeOverlayState(payload)
	event := domain.OverlayEvent{
		ID:        uuid.NewString(),
		Slot:      slot,
		Visible:   state.Visible,
		Payload:   json.RawMessage(payload),
		Timestamp: s.clock.Now().UTC(),
	}
	if state.Player != nil {
		event.PlayerID = state.Player.ID
		event.PlayerName = state.Player.Name
	}

	select {
	case s.events <- event:
	default:
		s.logger.Warn("overlay event queue full, dropping event",
			"slot", slot,
			"event_id", event.ID,
		)
	}
}

// runRecorders delivers queued events until Close
func (s *OverlayService) runRecorders() {
	defer close(s.doneCh)

	for event := range s.events {
		s.recordMu.RLock()
		recorders := append([]EventRecorder(nil), s.recorders...)
		s.recordMu.RUnlock()

		for _, r := range recorders {
			ctx, cancel := context.WithTimeout(context.Background(), s.config.RecordTimeout)
			err := r.RecordOverlayEvent(ctx, event)
			cancel()
			if err != nil {
				s.logger.Warn("failed to record overlay event",
					"slot", event.Slot,
					"event_id", event.ID,
					"error", err,
				)
			}
		}
	}
}

// History returns the most recent writes for slot
func (s *OverlayService) History(ctx context.Context, slot domain.Slot, limit int) ([]domain.OverlayEvent, error) {
	if s.history == nil {
		return nil, domain.ErrHistoryDisabled
	}

	if limit <= 0 {
		limit = s.config.HistoryLimit
	}
	if limit > s.config.HistoryMaxLimit {
		limit = s.config.HistoryMaxLimit
	}

	events, err := s.history.ListOverlayEvents(ctx, slot, limit)
	if err != nil {
		return nil, fmt.Errorf("listing overlay history: %w", err)
	}
	return events, nil
}

// Ping checks that the state store is reachable
func (s *OverlayService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
