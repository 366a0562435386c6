// Package dbtest provides an in-memory stand-in for database.Transaction so that
// code taking a transaction can be unit tested without Postgres.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/itsatony/recorderhub/internal/database"
)

type result int64

func (r result) LastInsertId() (int64, error) { return 0, fmt.Errorf("not supported") }
func (r result) RowsAffected() (int64, error) { return int64(r), nil }

// Tx records executed statements. Query methods fail unless a hook is set.
type Tx struct {
	mu         sync.Mutex
	Statements []string
	Committed  bool
	RolledBack bool

	ExecFn   func(query string, args ...interface{}) error
	GetFn    func(dest interface{}, query string, args ...interface{}) error
	SelectFn func(dest interface{}, query string, args ...interface{}) error
}

var _ database.Transaction = (*Tx)(nil)

func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Committed = true
	return nil
}

func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Committed {
		return sql.ErrTxDone
	}
	t.RolledBack = true
	return nil
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	t.mu.Lock()
	t.Statements = append(t.Statements, query)
	fn := t.ExecFn
	t.mu.Unlock()
	if fn != nil {
		if err := fn(query, args...); err != nil {
			return nil, err
		}
	}
	return result(1), nil
}

func (t *Tx) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if t.GetFn != nil {
		return t.GetFn(dest, query, args...)
	}
	return fmt.Errorf("not implemented")
}

func (t *Tx) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if t.SelectFn != nil {
		return t.SelectFn(dest, query, args...)
	}
	return fmt.Errorf("not implemented")
}

func (t *Tx) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return t.ExecContext(ctx, query, arg)
}

// Executed returns a copy of the recorded statements
func (t *Tx) Executed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.Statements...)
}

// Runner hands the same Tx to every WithTx call, committing on success
type Runner struct {
	Tx    *Tx
	Calls int
	// BeginErr, when set, is returned instead of running fn
	BeginErr  error
	CommitErr error
}

func NewRunner() *Runner {
	return &Runner{Tx: &Tx{}}
}

func (r *Runner) WithTx(ctx context.Context, fn func(tx database.Transaction) error) error {
	r.Calls++
	if r.BeginErr != nil {
		return r.BeginErr
	}
	if err := fn(r.Tx); err != nil {
		r.Tx.Rollback()
		return err
	}
	if r.CommitErr != nil {
		r.Tx.Rollback()
		return r.CommitErr
	}
	return r.Tx.Commit()
}
