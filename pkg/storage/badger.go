package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/orneryd/calotruth/pkg/truth"
)

// Key prefixes for BadgerDB storage organization
// Using single-byte prefixes for efficiency
const (
	prefixOutput  = byte(0x01) // output:eventID -> Output
	prefixSummary = byte(0x02) // summary:eventID -> Summary
)

// BadgerStore provides persistent storage of event outputs using BadgerDB.
//
// Key Structure:
//   - Outputs: 0x01 + big-endian eventID -> JSON(Output)
//   - Summaries: 0x02 + big-endian eventID -> JSON(Summary)
//
// Big-endian ids make iteration order follow event order. Output and summary
// are always written in one transaction.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	// Slower but more durable.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. If nil, it is discarded.
	Logger *zap.Logger

	// LowMemory enables memory-constrained settings.
	// Reduces MemTableSize and other buffers to use less RAM.
	LowMemory bool
}

// NewBadgerStore opens a BadgerDB-backed store.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.DataDir == "" {
		return nil, fmt.Errorf("%w: data dir required", ErrInvalidData)
	}
	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}

	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(badgerLogger{opts.Logger.Named("badger").Sugar()})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	if opts.LowMemory {
		badgerOpts = badgerOpts.
			WithMemTableSize(16 << 20).     // 16MB instead of 64MB
			WithValueLogFileSize(64 << 20). // 64MB instead of 1GB
			WithNumMemtables(2).            // 2 instead of 5
			WithNumLevelZeroTables(2).      // 2 instead of 5
			WithNumLevelZeroTablesStall(4). // 4 instead of 15
			WithBlockCacheSize(32 << 20).   // 32MB block cache
			WithIndexCacheSize(16 << 20)    // 16MB index cache
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreInMemory creates an in-memory BadgerDB store for testing.
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	return NewBadgerStore(BadgerOptions{InMemory: true})
}

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

// ============================================================================
// Key encoding helpers
// ============================================================================

func eventKey(prefix byte, eventID uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], eventID)
	return key
}

func outputKey(eventID uint64) []byte  { return eventKey(prefixOutput, eventID) }
func summaryKey(eventID uint64) []byte { return eventKey(prefixSummary, eventID) }

func (b *BadgerStore) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

// ============================================================================
// Store implementation
// ============================================================================

// Put implements Store.
func (b *BadgerStore) Put(out *truth.Output) error {
	if err := validateOutput(out); err != nil {
		return err
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	data, err := encodeOutput(out)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(Summarize(out, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(outputKey(out.EventID), data); err != nil {
			return err
		}
		return txn.Set(summaryKey(out.EventID), summary)
	})
}

// Get implements Store.
func (b *BadgerStore) Get(eventID uint64) (*truth.Output, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var out *truth.Output
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(outputKey(eventID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decodeErr error
			out, decodeErr = decodeOutput(val)
			return decodeErr
		})
	})
	return out, err
}

// Summary implements Store.
func (b *BadgerStore) Summary(eventID uint64) (Summary, error) {
	if err := b.checkOpen(); err != nil {
		return Summary{}, err
	}

	var s Summary
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(summaryKey(eventID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decodeSummary(val, &s)
		})
	})
	return s, err
}

func decodeSummary(val []byte, s *Summary) error {
	if err := json.Unmarshal(val, s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}

// List implements Store.
func (b *BadgerStore) List() ([]Summary, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var list []Summary
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixSummary}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var s Summary
			if err := it.Item().Value(func(val []byte) error {
				return decodeSummary(val, &s)
			}); err != nil {
				return err
			}
			list = append(list, s)
		}
		return nil
	})
	return list, err
}

// Delete implements Store.
func (b *BadgerStore) Delete(eventID uint64) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(outputKey(eventID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := txn.Delete(outputKey(eventID)); err != nil {
			return err
		}
		return txn.Delete(summaryKey(eventID))
	})
}

// Count implements Store.
func (b *BadgerStore) Count() (int, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixOutput}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Sync forces a sync of all data to disk.
func (b *BadgerStore) Sync() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Sync()
}

// RunGC runs garbage collection on the BadgerDB value log.
func (b *BadgerStore) RunGC() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return b.db.Close()
}
