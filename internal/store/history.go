package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// TransferState is the lifecycle state of a recorded transfer.
type TransferState string

const (
	StateInProgress TransferState = "InProgress"
	StateCompleted  TransferState = "Completed"
	StateFailed     TransferState = "Failed"
)

// TransferRecord is one entry of the transfer history.
type TransferRecord struct {
	ID          string        `json:"id"`
	Connection  string        `json:"connection"`
	Direction   string        `json:"direction"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	State       TransferState `json:"state"`
	Bytes       int64         `json:"bytes"`
	Total       int64         `json:"total"`
	Error       string        `json:"error,omitempty"`
	Started     time.Time     `json:"started"`
	Finished    time.Time     `json:"finished,omitzero"`
}

// historyKey sorts records by start time, then ID.
func historyKey(rec *TransferRecord) []byte {
	return []byte(fmt.Sprintf("%020d-%s", rec.Started.UnixNano(), rec.ID))
}

// SaveTransfer inserts or updates rec. The record keeps the position given
// by its first save.
func (s *BoltStore) SaveTransfer(rec *TransferRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("transfer ID is required")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(transferIDsBucket)
		key := ids.Get([]byte(rec.ID))
		if key == nil {
			key = historyKey(rec)
			if err := ids.Put([]byte(rec.ID), key); err != nil {
				return fmt.Errorf("failed to index transfer: %w", err)
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal transfer: %w", err)
		}
		if err := tx.Bucket(transfersBucket).Put(key, data); err != nil {
			return fmt.Errorf("failed to put transfer: %w", err)
		}
		return nil
	})
}

// GetTransfer returns the record with the given ID.
func (s *BoltStore) GetTransfer(id string) (*TransferRecord, error) {
	var rec TransferRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(transferIDsBucket).Get([]byte(id))
		if key == nil {
			return ErrTransferNotFound
		}
		data := tx.Bucket(transfersBucket).Get(key)
		if data == nil {
			return ErrTransferNotFound
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListTransfers returns up to limit records, newest first. A limit <= 0
// returns everything.
func (s *BoltStore) ListTransfers(limit int) ([]TransferRecord, error) {
	var records []TransferRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(transfersBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec TransferRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal transfer: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
