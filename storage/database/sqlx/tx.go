package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/avalia/avalia/core"
)

type txKey struct{}

// Transactor runs units of work in a postgres transaction carried by the context.
// Savepoints map to SAVEPOINT / ROLLBACK TO SAVEPOINT so a failed statement does not abort the whole transaction.
type Transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

func txFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok
}

// getExec returns the transaction carried by ctx, or db.
func getExec(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok { // join the running transaction
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back tx: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing tx")
}

func (t *Transactor) Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	tx, ok := txFromContext(ctx)
	if !ok {
		return t.InTx(ctx, fn)
	}

	sp := pq.QuoteIdentifier(name)
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return errors.Wrap(err, "creating savepoint")
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			// the transaction is no longer usable
			return errors.Wrapf(rbErr, "rolling back to savepoint after %v", err)
		}
		return err
	}
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp)
	return errors.Wrap(err, "releasing savepoint")
}
