package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"rlm/internal/domain"
	"rlm/internal/port"
)

var (
	bucketResults = []byte("results")
	bucketSeen    = []byte("seen")
	bucketMeta    = []byte("meta")
)

// BoltStore persists ledger results in a bbolt file. bbolt holds an
// exclusive file lock, so a second writer on the same path gets
// ErrLedgerConflict once the open timeout expires.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string, timeout time.Duration) (*BoltStore, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s is locked by another writer", domain.ErrLedgerConflict, path)
		}
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketResults, bucketSeen, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// PutResult writes the result and its seen mark in one transaction.
// Results are keyed by ChunkResult.Key, so a follow-up result for a chunk
// is kept next to the earlier ones and storing the same result twice is a
// no-op.
func (s *BoltStore) PutResult(result domain.ChunkResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result %s: %w", result.ChunkID, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketResults).Put([]byte(result.Key()), data); err != nil {
			return err
		}
		return tx.Bucket(bucketSeen).Put([]byte(result.ChunkID), []byte{})
	})
}

// ListResults returns every stored result in chunk id order.
func (s *BoltStore) ListResults() ([]domain.ChunkResult, error) {
	var results []domain.ChunkResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketResults).ForEach(func(k, v []byte) error {
			var r domain.ChunkResult
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupt result %q: %w", k, err)
			}
			results = append(results, r)
			return nil
		})
	})
	return results, err
}

func (s *BoltStore) SeenIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSeen).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ port.LedgerStore = (*BoltStore)(nil)
