// Package repository implements the service stores on MySQL with plain
// database/sql. Row locks (SELECT ... FOR UPDATE) are only meaningful when
// the repo is reached through Store.InTx.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/highway-inspection/internal/service"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the MySQL implementation of service.Store.
type Store struct {
	db *sql.DB
	q  querier
}

// NewStore binds a Store to db.
func NewStore(db *sql.DB) *Store { return &Store{db: db, q: db} }

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Airspaces() service.AirspaceStore       { return AirspaceRepo{q: s.q} }
func (s *Store) Reservations() service.ReservationStore { return ReservationRepo{q: s.q} }
func (s *Store) Applications() service.ApplicationStore { return ApplicationRepo{q: s.q} }
func (s *Store) Missions() service.MissionStore         { return MissionRepo{q: s.q} }
func (s *Store) Videos() service.VideoStore             { return VideoRepo{q: s.q} }
func (s *Store) Results() service.ResultStore           { return ResultRepo{q: s.q} }
func (s *Store) Alerts() service.AlertStore             { return AlertRepo{q: s.q} }

// InTx runs fn inside a transaction and commits when fn returns nil.
// Nested calls reuse the open transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx service.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func notFound(kind string, id uint64) error {
	return fmt.Errorf("%s %d: %w", kind, id, service.ErrNotFound)
}

// noRows maps sql.ErrNoRows to a not-found error for kind/id.
func noRows(err error, kind string, id uint64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(kind, id)
	}
	return err
}

// checkAffected reports not-found when an UPDATE or DELETE matched nothing.
// The DSN sets clientFoundRows so unchanged rows still count as matched.
func checkAffected(res sql.Result, kind string, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func lastID(res sql.Result) (uint64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// filter accumulates WHERE conditions and their arguments.
type filter struct {
	where []string
	args  []any
}

func (f *filter) add(cond string, args ...any) {
	f.where = append(f.where, cond)
	f.args = append(f.args, args...)
}

func (f *filter) String() string {
	if len(f.where) == 0 {
		return "1=1"
	}
	return strings.Join(f.where, " AND ")
}

// placeholders returns "?,?,...,?" with n marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
