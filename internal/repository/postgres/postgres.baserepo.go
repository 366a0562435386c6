package postgres

import (
	"context"
	"database/sql"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
)

// queryer is what both *sqlx.DB and database.Transaction offer
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

type PostgresBaseRepo struct {
	db database.DB
}

// conn returns tx when set and the pool otherwise
func (r *PostgresBaseRepo) conn(tx database.Transaction) queryer {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// requireAffected turns an update that touched no row into a not found error
func requireAffected(result sql.Result, notFound string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError(notFound, nil)
	}
	return nil
}
