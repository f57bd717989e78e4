package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"ciphersync/internal/domain"
)

// BadgerOptions configures the embedded store.
type BadgerOptions struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir        string
	InMemory   bool
	SyncWrites bool
	Logger     *zap.Logger
}

// Badger is a domain.TxnStore backed by an embedded BadgerDB. Badger runs
// every read-write transaction under snapshot isolation and reports write
// conflicts at commit, which is what insert-if-absent relies on.
type Badger struct {
	db     *badgerdb.DB
	logger *zap.Logger
}

// OpenBadger opens (or creates) a badger database.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("module", "storage"))

	var bopts badgerdb.Options
	if opts.InMemory {
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("badger: data directory is required")
		}
		if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
			return nil, err
		}
		bopts = badgerdb.DefaultOptions(opts.Dir)
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20).
		WithLogger(badgerLogger{logger.Sugar()})

	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	logger.Debug("badger opened", zap.String("dir", opts.Dir), zap.Bool("in_memory", opts.InMemory))
	return &Badger{db: db, logger: logger}, nil
}

// Begin starts a read-write transaction.
func (b *Badger) Begin(ctx context.Context) (domain.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &badgerTxn{txn: b.db.NewTransaction(true)}, nil
}

// Close flushes and closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

const (
	txActive int32 = iota
	txCommitted
	txDiscarded
)

type badgerTxn struct {
	txn   *badgerdb.Txn
	state atomic.Int32
}

var errTxnClosed = errors.New("transaction closed")

func (t *badgerTxn) Get(key []byte) ([]byte, bool, error) {
	if t.state.Load() != txActive {
		return nil, false, errTxnClosed
	}
	item, err := t.txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("copy value: %w", err)
	}
	return val, true, nil
}

func (t *badgerTxn) Set(key, value []byte) error {
	if t.state.Load() != txActive {
		return errTxnClosed
	}
	return t.txn.Set(key, value)
}

func (t *badgerTxn) Delete(key []byte) error {
	if t.state.Load() != txActive {
		return errTxnClosed
	}
	return t.txn.Delete(key)
}

func (t *badgerTxn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	if t.state.Load() != txActive {
		return errTxnClosed
	}
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		if err := fn(item.KeyCopy(nil), val); err != nil {
			if errors.Is(err, domain.ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (t *badgerTxn) Commit() error {
	if !t.state.CompareAndSwap(txActive, txCommitted) {
		return errTxnClosed
	}
	if err := t.txn.Commit(); err != nil {
		t.state.Store(txDiscarded)
		return err
	}
	return nil
}

func (t *badgerTxn) Discard() {
	if t.state.CompareAndSwap(txActive, txDiscarded) {
		t.txn.Discard()
	}
}

// badgerLogger routes badger's internal logging onto zap. Badger is chatty at
// info level, so info is demoted to debug.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.s.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.s.Warnf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.s.Debugf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.s.Debugf(f, v...) }

// Compile-time assertion that Badger implements domain.TxnStore.
var _ domain.TxnStore = (*Badger)(nil)
