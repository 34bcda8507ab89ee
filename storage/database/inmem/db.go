package inmemdb

import (
	"context"
	"sync"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/academic"
	"github.com/avalia/avalia/core/user"
)

type (
	// DB is an in-memory store. Transactions are emulated with table snapshots, so
	// a rolled back InTx or Savepoint restores every table to its state before fn ran.
	DB struct {
		mutex sync.RWMutex
		tables
	}

	tables struct {
		users       map[string]user.User
		departments map[int64]academic.Department
		disciplines map[int64]academic.Discipline
		groups      map[int64]academic.Group
		enrollments map[int64]academic.Enrollment
		seq         int64
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	db := new(DB)
	db.tables = newTables()
	return db
}

func newTables() tables {
	return tables{
		users:       make(map[string]user.User),
		departments: make(map[int64]academic.Department),
		disciplines: make(map[int64]academic.Discipline),
		groups:      make(map[int64]academic.Group),
		enrollments: make(map[int64]academic.Enrollment),
	}
}

// Reset drops all data.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables = newTables()
}

func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

func (db *DB) snapshot() tables {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	snap := newTables()
	snap.seq = db.seq
	for k, v := range db.users {
		snap.users[k] = v
	}
	for k, v := range db.departments {
		snap.departments[k] = v
	}
	for k, v := range db.disciplines {
		snap.disciplines[k] = v
	}
	for k, v := range db.groups {
		snap.groups[k] = v
	}
	for k, v := range db.enrollments {
		snap.enrollments[k] = v
	}
	return snap
}

func (db *DB) restore(snap tables) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables = snap
}

func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := db.snapshot()
	if err := fn(ctx); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

func (db *DB) Savepoint(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, fn)
}

// Count returns the number of rows of table: users, departments, disciplines, groups or enrollments.
func (db *DB) Count(table string) int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	switch table {
	case "users":
		return len(db.users)
	case "departments":
		return len(db.departments)
	case "disciplines":
		return len(db.disciplines)
	case "groups":
		return len(db.groups)
	case "enrollments":
		return len(db.enrollments)
	}
	return 0
}
