package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/overlay-relay/internal/config"
	"github.com/overlay-relay/internal/domain"
)

// HistoryRepository stores accepted overlay writes in PostgreSQL
type HistoryRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHistoryRepository creates a new PostgreSQL history repository
func NewHistoryRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*HistoryRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return NewHistoryRepositoryWithPool(pool, logger), nil
}

// NewHistoryRepositoryWithPool wraps an existing connection pool
func NewHistoryRepositoryWithPool(pool *pgxpool.Pool, logger *slog.Logger) *HistoryRepository {
	return &HistoryRepository{
		pool:   pool,
		logger: logger,
	}
}

// Close closes the database connection pool
func (r *HistoryRepository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *HistoryRepository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS overlay_events (
			id UUID PRIMARY KEY,
			slot VARCHAR(32) NOT NULL,
			visible BOOLEAN NOT NULL,
			player_id VARCHAR(64),
			player_name VARCHAR(255),
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_overlay_events_slot ON overlay_events(slot, created_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := r.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// RecordOverlayEvent inserts one accepted write
func (r *HistoryRepository) RecordOverlayEvent(ctx context.Context, event domain.OverlayEvent) error {
	query := `
		INSERT INTO overlay_events (id, slot, visible, player_id, player_name, payload, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		string(event.Slot),
		event.Visible,
		event.PlayerID,
		event.PlayerName,
		[]byte(event.Payload),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("recording overlay event: %w", err)
	}
	return nil
}

// ListOverlayEvents returns the latest writes for slot, newest first
func (r *HistoryRepository) ListOverlayEvents(ctx context.Context, slot domain.Slot, limit int) ([]domain.OverlayEvent, error) {
	query := `
		SELECT id::text, slot, visible, COALESCE(player_id, ''), COALESCE(player_name, ''), payload, created_at
		FROM overlay_events
		WHERE slot = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, string(slot), limit)
	if err != nil {
		return nil, fmt.Errorf("listing overlay events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.OverlayEvent, 0, limit)
	for rows.Next() {
		var (
			event   domain.OverlayEvent
			slotStr string
			payload []byte
		)
		if err := rows.Scan(
			&event.ID,
			&slotStr,
			&event.Visible,
			&event.PlayerID,
			&event.PlayerName,
			&payload,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scanning overlay event: %w", err)
		}
		event.Slot = domain.Slot(slotStr)
		event.Payload = payload
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating overlay events: %w", err)
	}
	return events, nil
}

// PruneOverlayEvents deletes writes recorded before the cutoff
func (r *HistoryRepository) PruneOverlayEvents(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM overlay_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("pruning overlay events: %w", err)
	}
	return result.RowsAffected(), nil
}
