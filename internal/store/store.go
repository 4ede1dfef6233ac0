// Package store persists named connections and transfer history in a bbolt file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
)

var (
	// ErrConnectionNotFound is returned when no connection has the requested name.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrTransferNotFound is returned when no transfer has the requested ID.
	ErrTransferNotFound = errors.New("transfer not found")
)

var (
	connectionsBucket = []byte("connections")
	transfersBucket   = []byte("transfers")
	transferIDsBucket = []byte("transfer_ids")
)

// DefaultFileName is the database file created inside the data directory.
const DefaultFileName = "ducktransfer.db"

// BoltStore is the connection store and transfer history backed by bbolt.
type BoltStore struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{connectionsBucket, transfersBucket, transferIDsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Load returns every saved connection ordered by name.
func (s *BoltStore) Load() ([]connector.Config, error) {
	var configs []connector.Config
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(connectionsBucket).ForEach(func(_, v []byte) error {
			var cfg connector.Config
			if err := json.Unmarshal(v, &cfg); err != nil {
				return fmt.Errorf("failed to unmarshal connection: %w", err)
			}
			configs = append(configs, cfg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// Save replaces the whole collection with configs. Later entries win when
// two share a name.
func (s *BoltStore) Save(configs []connector.Config) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(connectionsBucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(connectionsBucket)
		if err != nil {
			return err
		}
		for _, cfg := range configs {
			if err := putConnection(b, cfg); err != nil {
				return err
			}
		}
		return nil
	})
}

// Add stores cfg, replacing any connection with the same name.
func (s *BoltStore) Add(cfg connector.Config) error {
	if cfg.Name == "" {
		return errors.New("connection name is required")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putConnection(tx.Bucket(connectionsBucket), cfg)
	})
}

// Remove deletes the named connection.
func (s *BoltStore) Remove(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(connectionsBucket)
		if b.Get([]byte(name)) == nil {
			return ErrConnectionNotFound
		}
		return b.Delete([]byte(name))
	})
}

// Get returns the named connection.
func (s *BoltStore) Get(name string) (connector.Config, error) {
	var cfg connector.Config
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(connectionsBucket).Get([]byte(name))
		if data == nil {
			return ErrConnectionNotFound
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to unmarshal connection: %w", err)
		}
		return nil
	})
	return cfg, err
}

func putConnection(b *bbolt.Bucket, cfg connector.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}
	if err := b.Put([]byte(cfg.Name), data); err != nil {
		return fmt.Errorf("failed to put connection: %w", err)
	}
	return nil
}
