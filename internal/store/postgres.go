package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"

	"ciphersync/internal/domain"
)

const (
	postgresTableName        = "ciphersync_kv"
	postgresOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Postgres is a domain.TxnStore over a single key-value table. Transactions
// run at SERIALIZABLE so concurrent insert-if-absent callers conflict at
// commit the same way they do on badger.
type Postgres struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewPostgres returns a store for dsn. The connection and schema are set up
// lazily on first use.
func NewPostgres(dsn string) (*Postgres, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	return &Postgres{
		dsn:       dsn,
		tableName: postgresTableName,
		openDB:    sql.Open,
	}, nil
}

// Begin starts a SERIALIZABLE transaction.
func (p *Postgres) Begin(ctx context.Context) (domain.Txn, error) {
	if err := p.ensureReady(); err != nil {
		return nil, err
	}
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	return &postgresTxn{ctx: ctx, tx: tx, table: postgresQuoteIdentifier(p.tableName)}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) ensureReady() error {
	p.initOnce.Do(func() {
		db, err := p.openDB("postgres", p.dsn)
		if err != nil {
			p.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				k BYTEA PRIMARY KEY,
				v BYTEA NOT NULL
			)`, postgresQuoteIdentifier(p.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			p.initErr = err
			return
		}
		p.db = db
	})
	return p.initErr
}

type postgresTxn struct {
	ctx   context.Context
	tx    *sql.Tx
	table string
	state atomic.Int32
}

func (t *postgresTxn) Get(key []byte) ([]byte, bool, error) {
	if t.state.Load() != txActive {
		return nil, false, errTxnClosed
	}
	query := fmt.Sprintf("SELECT v FROM %s WHERE k = $1", t.table)
	var v []byte
	err := t.tx.QueryRowContext(t.ctx, query, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *postgresTxn) Set(key, value []byte) error {
	if t.state.Load() != txActive {
		return errTxnClosed
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (k, v) VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`, t.table)
	_, err := t.tx.ExecContext(t.ctx, query, key, value)
	return err
}

func (t *postgresTxn) Delete(key []byte) error {
	if t.state.Load() != txActive {
		return errTxnClosed
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE k = $1", t.table)
	_, err := t.tx.ExecContext(t.ctx, query, key)
	return err
}

// Scan reads the whole range before calling fn; lib/pq cannot run a second
// statement on the transaction while a result set is open.
func (t *postgresTxn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	if t.state.Load() != txActive {
		return errTxnClosed
	}
	var (
		rows *sql.Rows
		err  error
	)
	if end := prefixEnd(prefix); end != nil {
		query := fmt.Sprintf("SELECT k, v FROM %s WHERE k >= $1 AND k < $2 ORDER BY k", t.table)
		rows, err = t.tx.QueryContext(t.ctx, query, prefix, end)
	} else {
		query := fmt.Sprintf("SELECT k, v FROM %s WHERE k >= $1 ORDER BY k", t.table)
		rows, err = t.tx.QueryContext(t.ctx, query, prefix)
	}
	if err != nil {
		return err
	}

	type kv struct{ k, v []byte }
	var batch []kv
	for rows.Next() {
		var item kv
		if err := rows.Scan(&item.k, &item.v); err != nil {
			_ = rows.Close()
			return err
		}
		batch = append(batch, item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, item := range batch {
		if err := fn(item.k, item.v); err != nil {
			if errors.Is(err, domain.ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (t *postgresTxn) Commit() error {
	if !t.state.CompareAndSwap(txActive, txCommitted) {
		return errTxnClosed
	}
	return t.tx.Commit()
}

func (t *postgresTxn) Discard() {
	if t.state.CompareAndSwap(txActive, txDiscarded) {
		_ = t.tx.Rollback()
	}
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func postgresQuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Compile-time assertion that Postgres implements domain.TxnStore.
var _ domain.TxnStore = (*Postgres)(nil)
