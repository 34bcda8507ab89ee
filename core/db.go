package core

import "context"

// Transactor runs units of work atomically.
// The context handed to fn carries the transaction; repositories pick it up from there.
type Transactor interface {
	// InTx runs fn inside a single transaction, committed only if fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Savepoint runs fn so that a failure only undoes the writes fn made.
	// The enclosing transaction stays usable.
	Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error
}
