package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/overlay-relay/internal/config"
	"github.com/overlay-relay/internal/domain"
	"golang.org/x/sync/singleflight"
)

// PlayerSource is the upstream ranked leaderboard
type PlayerSource interface {
	Search(ctx context.Context, playerID string) (*domain.PlayerRecord, error)
}

type cacheEntry struct {
	player    domain.PlayerRecord
	fetchedAt time.Time
}

// LookupService resolves player ids against the upstream leaderboard with a
// process-local freshness cache. The cache is owned here and never shared.
type LookupService struct {
	source PlayerSource
	ttl    time.Duration
	clock  clockwork.Clock
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
	group singleflight.Group
}

// NewLookupService creates a new lookup service
func NewLookupService(
	source PlayerSource,
	cfg *config.LeaderboardConfig,
	clock clockwork.Clock,
	logger *slog.Logger,
) *LookupService {
	return &LookupService{
		source: source,
		ttl:    cfg.CacheTTL,
		clock:  clock,
		logger: logger,
		cache:  make(map[string]cacheEntry),
	}
}

// Lookup returns the player for id, from cache when fresh
func (s *LookupService) Lookup(ctx context.Context, id string) (*domain.PlayerRecord, error) {
	playerID := domain.NormalizePlayerID(id)
	if playerID == "" {
		return nil, domain.ErrPlayerIDRequired
	}

	if player, ok := s.cached(playerID); ok {
		s.logger.Debug("player lookup cache hit", "player_id", playerID)
		return player, nil
	}

	// Concurrent misses for the same id share one upstream call. The shared
	// call is detached from any one caller's cancellation; the upstream client
	// timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(playerID, func() (interface{}, error) {
		player, err := s.source.Search(shared, playerID)
		if err != nil {
			return nil, err
		}
		s.store(playerID, *player)
		return *player, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		player := res.Val.(domain.PlayerRecord)
		return clonePlayer(&player), nil
	}
}

func (s *LookupService) cached(playerID string) (*domain.PlayerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[playerID]
	if !ok {
		return nil, false
	}
	if s.clock.Since(entry.fetchedAt) >= s.ttl {
		return nil, false
	}
	return clonePlayer(&entry.player), true
}

func (s *LookupService) store(playerID string, player domain.PlayerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[playerID] = cacheEntry{player: player, fetchedAt: s.clock.Now()}
}

// clonePlayer copies a record so callers cannot mutate cached data
func clonePlayer(p *domain.PlayerRecord) *domain.PlayerRecord {
	cp := *p
	if p.Rating != nil {
		rating := *p.Rating
		cp.Rating = &rating
	}
	if p.Rank != nil {
		rank := *p.Rank
		cp.Rank = &rank
	}
	return &cp
}
