package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"image-scraper/pkg/log"
	"image-scraper/pkg/models"
	"image-scraper/pkg/utils"
)

const (
	imageKeyPrefix = "img:"       // Prefix for image URL keys in DB
	runKeyPrefix   = "run:"       // Prefix for run summary keys in DB
	historyDBDir   = "history_db" // Subdirectory name within stateDir for Badger DB files

	runKeyTimeLayout = "20060102T150405.000000000" // Sorts lexically in time order
)

// BadgerStore implements the HistoryStore interface using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) GetKeyCount
}

// NewBadgerStore opens (or creates) the history database under stateDir
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}

	dbPath := filepath.Join(stateDir, historyDBDir)
	logger.Debugf("Opening history database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1) // Only the latest outcome per URL matters

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing keys: %v", err)
	} else {
		store.keyCount.Store(int64(count))
	}

	return store, nil
}

// countKeys performs a one-time full key scan (used only during initialization).
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent runs may touch the same image key; conflicts resolve in microseconds.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// setJSON marshals v under key, bumping the key count when the key is new
func (s *BadgerStore) setJSON(key []byte, v any) error {
	if s.db == nil {
		return fmt.Errorf("%w: history DB not initialized", utils.ErrDatabase)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal value for key '%s': %w", utils.ErrParsing, string(key), err)
	}

	isNew := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, data))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error: %v", err)
		return fmt.Errorf("%w: writing key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	return nil
}

// CheckImageStatus implements the ImageStore interface
func (s *BadgerStore) CheckImageStatus(imgURL string) (models.ImageStatus, *models.ImageDBEntry, error) {
	status := models.ImageStatusNotFound
	var entry *models.ImageDBEntry
	key := []byte(imageKeyPrefix + imgURL)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting image key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			var decoded models.ImageDBEntry
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				s.log.Warnf("Failed to unmarshal ImageDBEntry for key '%s': %v", string(key), errJSON)
				status = models.ImageStatusUnset
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB View error in CheckImageStatus for key '%s': %v", string(key), errView)
		return models.ImageStatusDBError, nil, errView
	}
	return status, entry, nil
}

// UpdateImageStatus implements the ImageStore interface
func (s *BadgerStore) UpdateImageStatus(imgURL string, entry *models.ImageDBEntry) error {
	return s.setJSON([]byte(imageKeyPrefix+imgURL), entry)
}

func runKey(run *models.RunRecord) []byte {
	return []byte(runKeyPrefix + run.StartedAt.UTC().Format(runKeyTimeLayout) + "_" + run.ID)
}

// RecordRun implements the RunStore interface
func (s *BadgerStore) RecordRun(run *models.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run record has no ID", utils.ErrDatabase)
	}
	return s.setJSON(runKey(run), run)
}

// RecentRuns implements the RunStore interface
func (s *BadgerStore) RecentRuns(limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	limit = min(limit, MaxRunsLimit)
	runs := make([]models.RunRecord, 0, min(limit, 64))

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the last key <= the seek key
		seekKey := append([]byte(runKeyPrefix), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(opts.Prefix) && len(runs) < limit; it.Next() {
			item := it.Item()
			errValue := item.Value(func(val []byte) error {
				var run models.RunRecord
				if errJSON := json.Unmarshal(val, &run); errJSON != nil {
					s.log.Warnf("Skipping undecodable run record '%s': %v", string(item.Key()), errJSON)
					return nil
				}
				runs = append(runs, run)
				return nil
			})
			if errValue != nil {
				return errValue
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing runs: %w", utils.ErrDatabase, err)
	}
	return runs, nil
}

// GetKeyCount implements the StoreAdmin interface.
func (s *BadgerStore) GetKeyCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC runs BadgerDB's garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				// Rewrite value log files that are at least half reclaimable
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements the StoreAdmin interface
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing history DB: %v", err)
			return err
		}
		s.log.Debug("History DB closed.")
	}
	return nil
}
