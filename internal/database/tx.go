package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/lib/pq"
	nuts "github.com/vaudience/go-nuts"
)

// Postgres error codes that mean "try again later" rather than "bad request"
const (
	codeLockNotAvailable = "55P03"
	codeQueryCanceled    = "57014"
	codeDeadlock         = "40P01"
	codeSerialization    = "40001"
	codeUniqueViolation  = "23505"
)

// TxRunner runs a function inside a single transaction
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx Transaction) error) error
}

// Runner opens transactions with per-transaction lock and statement timeouts so a
// stuck row lock fails the call instead of hanging it.
type Runner struct {
	db               DB
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

func NewRunner(db DB, lockTimeout, statementTimeout time.Duration) *Runner {
	return &Runner{
		db:               db,
		lockTimeout:      lockTimeout,
		statementTimeout: statementTimeout,
	}
}

// BeginTx starts a transaction with the configured timeouts applied
func (r *Runner) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := r.db.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to begin transaction", err)
	}
	if err := setLocal(ctx, tx, "lock_timeout", r.lockTimeout); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := setLocal(ctx, tx, "statement_timeout", r.statementTimeout); err != nil {
		tx.Rollback()
		return nil, err
	}
	return tx, nil
}

// WithTx commits when fn returns nil and rolls back otherwise. A failed commit is
// reported as a database error.
func (r *Runner) WithTx(ctx context.Context, fn func(tx Transaction) error) error {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
			nuts.L.Warnf("[Database] Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return MapError(err, "failed to commit transaction")
	}
	return nil
}

func setLocal(ctx context.Context, tx Transaction, name string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	// set_config(..., true) is the parameterizable form of SET LOCAL
	_, err := tx.ExecContext(ctx, "SELECT set_config($1, $2, true)", name, fmt.Sprintf("%dms", d.Milliseconds()))
	if err != nil {
		return errors.NewDatabaseError("failed to set "+name, err)
	}
	return nil
}

// Savepoint runs fn inside a savepoint of tx. When fn fails the savepoint is rolled
// back so the surrounding transaction stays usable; fn's error is returned either way.
func Savepoint(ctx context.Context, tx Transaction, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return MapError(err, "failed to create savepoint")
	}

	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			nuts.L.Errorf("[Database] Rollback to savepoint %s failed: %v", name, rbErr)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return MapError(err, "failed to release savepoint")
	}
	return nil
}

// MapError translates driver errors into API errors. Errors that already are API
// errors pass through unchanged.
func MapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		return err
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NewNotFoundError(msg, err)
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeLockNotAvailable:
			return errors.NewDatabaseError(msg+": lock timeout", err)
		case codeQueryCanceled:
			return errors.NewDatabaseError(msg+": statement timeout", err)
		case codeDeadlock, codeSerialization:
			return errors.NewDatabaseError(msg+": concurrent update", err)
		case codeUniqueViolation:
			return errors.NewConflictError(msg+": already exists", err)
		}
	}
	return errors.NewDatabaseError(msg, err)
}
