// Package badger is a production-ready ICommitmentStore backed by Badger,
// structurally the teacher's pkg/persistence/badger.BadgerPersistence
// generalized from key-share/session state to commitment rows with the
// accumulator invariants from spec.md §4.4.
package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/engineerr"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/store"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Key prefixes for namespacing.
const (
	keyPrefixCommitment  = "commitment:"
	keyPrefixNonce       = "nonce:"
	keyPrefixLeafIndex   = "leafidx:"
	keyPrefixBuilderLock = "builderlock:"
	keyNextID            = "meta:next_id"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerStore is a production-ready ICommitmentStore using Badger.
// Provides durable, disk-based storage with ACID guarantees: every
// operation that must be atomic (insert+nonce, mark_included's
// read-check-write) runs inside a single badger transaction.
type BadgerStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ store.ICommitmentStore = (*BadgerStore)(nil)

// New opens a Badger-backed commitment store at dataPath. SyncWrites is
// enabled for durability; a background goroutine runs periodic value log
// GC.
func New(dataPath string, logger *zap.Logger) (*BadgerStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badger database at %s", absPath)
	}

	b := &BadgerStore{db: db, logger: logger}

	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.gcCancel = cancel
	b.gcWg.Add(1)
	go b.runGC(ctx)

	logger.Sugar().Infow("badger commitment store initialized", "path", absPath)
	return b, nil
}

func (b *BadgerStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return errors.Wrap(err, "failed to read schema version")
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "failed to read schema version value")
		}
		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func idKey(id uint64) []byte {
	buf := make([]byte, len(keyPrefixCommitment)+8)
	copy(buf, keyPrefixCommitment)
	binary.BigEndian.PutUint64(buf[len(keyPrefixCommitment):], id)
	return buf
}

func nonceKey(ownerKey [32]byte) []byte {
	buf := make([]byte, len(keyPrefixNonce)+32)
	copy(buf, keyPrefixNonce)
	copy(buf[len(keyPrefixNonce):], ownerKey[:])
	return buf
}

func leafIndexKey(kind commitment.AccumulatorKind, leafIndex uint64) []byte {
	buf := make([]byte, 0, len(keyPrefixLeafIndex)+16+8)
	buf = append(buf, keyPrefixLeafIndex...)
	buf = append(buf, kind...)
	buf = append(buf, ':')
	idxBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idxBuf, leafIndex)
	return append(buf, idxBuf...)
}

// InsertCommitment assigns a dense increasing id and the owner's next
// nonce inside a single badger transaction.
func (b *BadgerStore) InsertCommitment(kind commitment.AccumulatorKind, ownerKey [32]byte, amount uint64, commitmentHash [32]byte) (uint64, uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, 0, fmt.Errorf("commitment store is closed")
	}

	var id, nonce uint64

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		var err error
		id, err = nextID(txn)
		if err != nil {
			return err
		}

		nonce, err = allocateNonce(txn, ownerKey)
		if err != nil {
			return err
		}

		row := &commitment.Commitment{
			ID:             id,
			Kind:           kind,
			OwnerKey:       ownerKey,
			Amount:         amount,
			Nonce:          nonce,
			CommitmentHash: commitmentHash,
			Status:         commitment.StatusPendingTreeInclusion,
			Included:       false,
		}

		data, err := store.MarshalCommitment(row)
		if err != nil {
			return err
		}
		return txn.Set(idKey(id), data)
	})
	if err != nil {
		return 0, 0, &engineerr.StoreTransient{Op: "InsertCommitment", Err: err}
	}
	return id, nonce, nil
}

func nextID(txn *badgerdb.Txn) (uint64, error) {
	item, err := txn.Get([]byte(keyNextID))
	var id uint64
	if err == badgerdb.ErrKeyNotFound {
		id = 0
	} else if err != nil {
		return 0, err
	} else {
		err = item.Value(func(val []byte) error {
			id = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id+1)
	if err := txn.Set([]byte(keyNextID), buf); err != nil {
		return 0, err
	}
	return id, nil
}

// allocateNonce is the nonce allocator from spec.md §4.6, colocated here
// because it must run in the same transaction as the insert it serves.
func allocateNonce(txn *badgerdb.Txn, ownerKey [32]byte) (uint64, error) {
	key := nonceKey(ownerKey)
	item, err := txn.Get(key)
	var current uint64
	if err == badgerdb.ErrKeyNotFound {
		current = 0
	} else if err != nil {
		return 0, err
	} else {
		err = item.Value(func(val []byte) error {
			current = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, current+1)
	if err := txn.Set(key, buf); err != nil {
		return 0, err
	}
	return current, nil
}

// FetchPending returns rows with status=PENDING_TREE_INCLUSION AND
// included=false for kind, ordered by id ascending (guaranteed by the
// big-endian id key encoding).
func (b *BadgerStore) FetchPending(kind commitment.AccumulatorKind, limit int) ([]*commitment.Commitment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("commitment store is closed")
	}

	var result []*commitment.Commitment

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixCommitment)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(result) >= limit {
				break
			}

			item := it.Item()
			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
			if err != nil {
				return errors.Wrap(err, "failed to read commitment value")
			}

			row, err := store.UnmarshalCommitment(data)
			if err != nil {
				b.logger.Sugar().Warnw("failed to unmarshal commitment, skipping", "key", string(item.Key()), "error", err)
				continue
			}

			if row.Kind == kind && row.ReadyForInclusion() {
				result = append(result, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &engineerr.StoreTransient{Op: "FetchPending", Err: err}
	}
	return result, nil
}

// FetchAllIncludedOrdered returns every included row for kind, ordered by
// leaf_index ascending.
func (b *BadgerStore) FetchAllIncludedOrdered(kind commitment.AccumulatorKind) ([]*commitment.Commitment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("commitment store is closed")
	}

	var included []*commitment.Commitment

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixCommitment)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
			if err != nil {
				return errors.Wrap(err, "failed to read commitment value")
			}

			row, err := store.UnmarshalCommitment(data)
			if err != nil {
				b.logger.Sugar().Warnw("failed to unmarshal commitment, skipping", "key", string(item.Key()), "error", err)
				continue
			}

			if row.Kind == kind && row.Included {
				included = append(included, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &engineerr.StoreTransient{Op: "FetchAllIncludedOrdered", Err: err}
	}

	sortByLeafIndex(included)
	return included, nil
}

func sortByLeafIndex(rows []*commitment.Commitment) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && *rows[j].LeafIndex < *rows[j-1].LeafIndex; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

// MarkIncluded atomically sets included=true, writes leaf_index, proof,
// and merkle_root, and transitions status, all within one transaction
// that also checks and claims the per-kind leaf_index uniqueness key.
func (b *BadgerStore) MarkIncluded(id uint64, leafIndex uint64, proof *commitment.Proof, merkleRoot [32]byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("commitment store is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(idKey(id))
		if err == badgerdb.ErrKeyNotFound {
			return &engineerr.StorePermanent{Op: "MarkIncluded", Err: fmt.Errorf("no such commitment id %d", id)}
		}
		if err != nil {
			return errors.Wrap(err, "failed to read commitment")
		}

		var data []byte
		if err := item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		}); err != nil {
			return errors.Wrap(err, "failed to read commitment value")
		}

		row, err := store.UnmarshalCommitment(data)
		if err != nil {
			return err
		}

		if row.Included {
			if *row.LeafIndex == leafIndex && *row.MerkleRoot == merkleRoot {
				return nil
			}
			return &engineerr.Conflict{Reason: fmt.Sprintf("commitment %d already included at leaf_index %d", id, *row.LeafIndex)}
		}

		lk := leafIndexKey(row.Kind, leafIndex)
		if _, err := txn.Get(lk); err == nil {
			return &engineerr.Conflict{Reason: fmt.Sprintf("leaf_index %d already held for kind %s", leafIndex, row.Kind)}
		} else if err != badgerdb.ErrKeyNotFound {
			return errors.Wrap(err, "failed to check leaf_index uniqueness")
		}

		if !row.Status.CanTransition(commitment.StatusPendingProofGen) {
			return &engineerr.StorePermanent{Op: "MarkIncluded", Err: fmt.Errorf("commitment %d in status %s cannot transition to %s", id, row.Status, commitment.StatusPendingProofGen)}
		}

		li := leafIndex
		root := merkleRoot
		row.LeafIndex = &li
		row.Proof = proof
		row.MerkleRoot = &root
		row.Included = true
		row.Status = commitment.StatusPendingProofGen

		idBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(idBuf, id)
		if err := txn.Set(lk, idBuf); err != nil {
			return errors.Wrap(err, "failed to claim leaf_index")
		}

		newData, err := store.MarshalCommitment(row)
		if err != nil {
			return err
		}
		return txn.Set(idKey(id), newData)
	})
}

// MarkFailed transitions the row to FAILED and increments retry_count.
// Idempotent.
func (b *BadgerStore) MarkFailed(id uint64, reason string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("commitment store is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(idKey(id))
		if err == badgerdb.ErrKeyNotFound {
			return &engineerr.StorePermanent{Op: "MarkFailed", Err: fmt.Errorf("no such commitment id %d", id)}
		}
		if err != nil {
			return errors.Wrap(err, "failed to read commitment")
		}

		var data []byte
		if err := item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		}); err != nil {
			return errors.Wrap(err, "failed to read commitment value")
		}

		row, err := store.UnmarshalCommitment(data)
		if err != nil {
			return err
		}

		if row.Status == commitment.StatusFailed {
			return nil
		}
		if !row.Status.CanTransition(commitment.StatusFailed) {
			return &engineerr.StorePermanent{Op: "MarkFailed", Err: fmt.Errorf("commitment %d in status %s cannot transition to FAILED", id, row.Status)}
		}

		row.Status = commitment.StatusFailed
		row.RetryCount++
		_ = reason

		newData, err := store.MarshalCommitment(row)
		if err != nil {
			return err
		}
		return txn.Set(idKey(id), newData)
	})
}

// Close shuts down the store. Idempotent.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("badger commitment store closed")
	return nil
}

func builderLockKey(kind commitment.AccumulatorKind) []byte {
	return []byte(keyPrefixBuilderLock + string(kind))
}

// AcquireBuilderLock grants the lease if no unexpired lease is held, per
// spec.md §4.5's singleton-builder deployment invariant.
func (b *BadgerStore) AcquireBuilderLock(kind commitment.AccumulatorKind, ttl time.Duration) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("commitment store is closed")
	}

	var granted bool
	err := b.db.Update(func(txn *badgerdb.Txn) error {
		key := builderLockKey(kind)
		item, err := txn.Get(key)
		if err != nil && err != badgerdb.ErrKeyNotFound {
			return errors.Wrap(err, "failed to read builder lock")
		}
		if err == nil {
			var expiryUnixNano int64
			if err := item.Value(func(val []byte) error {
				expiryUnixNano = int64(binary.BigEndian.Uint64(val))
				return nil
			}); err != nil {
				return errors.Wrap(err, "failed to read builder lock expiry")
			}
			if time.Now().UnixNano() < expiryUnixNano {
				granted = false
				return nil
			}
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(time.Now().Add(ttl).UnixNano()))
		if err := txn.Set(key, buf); err != nil {
			return errors.Wrap(err, "failed to set builder lock")
		}
		granted = true
		return nil
	})
	if err != nil {
		return false, &engineerr.StoreTransient{Op: "AcquireBuilderLock", Err: err}
	}
	return granted, nil
}

// RenewBuilderLock extends the caller's lease unconditionally.
func (b *BadgerStore) RenewBuilderLock(kind commitment.AccumulatorKind, ttl time.Duration) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("commitment store is closed")
	}

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(time.Now().Add(ttl).UnixNano()))
		return txn.Set(builderLockKey(kind), buf)
	})
	if err != nil {
		return &engineerr.StoreTransient{Op: "RenewBuilderLock", Err: err}
	}
	return nil
}

// ReleaseBuilderLock drops the lease early.
func (b *BadgerStore) ReleaseBuilderLock(kind commitment.AccumulatorKind) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("commitment store is closed")
	}

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(builderLockKey(kind))
	})
	if err != nil {
		return &engineerr.StoreTransient{Op: "ReleaseBuilderLock", Err: err}
	}
	return nil
}

// HealthCheck verifies the store is operational: the schema version key
// must exist and match.
func (b *BadgerStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("commitment store is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if string(val) != currentSchemaVersion {
				return fmt.Errorf("unexpected schema version %q", string(val))
			}
			return nil
		})
	})
}
