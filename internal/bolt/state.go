package bolt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/overlay-relay/internal/config"
	"go.etcd.io/bbolt"
)

// overlayBucket holds one entry per overlay key
const overlayBucket = "overlay"

// StateStore keeps overlay documents in a local bbolt file. It is meant for
// single-host setups where the control and display pages hit the same server.
type StateStore struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// NewStateStore opens (or creates) the bbolt file at cfg.Path
func NewStateStore(cfg *config.BoltConfig, logger *slog.Logger) (*StateStore, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating bolt directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt at %s: %w", cfg.Path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(overlayBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	logger.Info("bolt state store opened", "path", cfg.Path)
	return &StateStore{db: db, logger: logger}, nil
}

// Close closes the database file
func (s *StateStore) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key
func (s *StateStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(overlayBucket))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return nil
		}
		// data is only valid for the life of the transaction
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("getting %s: %w", key, err)
	}
	return value, value != nil, nil
}

// Set overwrites the value under key
func (s *StateStore) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(overlayBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %s does not exist", overlayBucket)
		}
		return bucket.Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Ping reports whether the database is still open
func (s *StateStore) Ping(_ context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(overlayBucket)) == nil {
			return fmt.Errorf("bucket %s missing", overlayBucket)
		}
		return nil
	})
}
