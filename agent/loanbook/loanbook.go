// Package loanbook persists finished loan applications and answers
// prior-history lookups for returning customers.
package loanbook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrNoHistory is returned when a customer has no recorded application.
var ErrNoHistory = errors.New("loanbook: no loan history")

// Record is one finished application.
type Record struct {
	bun.BaseModel `bun:"table:loan_records"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	PAN         string    `bun:"pan,notnull" json:"pan"`
	Amount      int64     `bun:"amount,notnull" json:"amount"`
	Status      string    `bun:"status,notnull" json:"status"`
	SanctionURL string    `bun:"sanction_url" json:"sanction_url,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Book records finished applications and serves history lookups.
type Book interface {
	Save(ctx context.Context, rec *Record) error
	MostRecentByName(ctx context.Context, name string) (*Record, error)
}

// PostgresBook stores records in Postgres via bun.
type PostgresBook struct {
	db *bun.DB
}

// NewPostgresBook opens a connection pool from a postgres DSN and ensures
// the loan_records table exists.
func NewPostgresBook(ctx context.Context, dsn string) (*PostgresBook, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("loanbook: dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loanbook: ping: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Record)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loanbook: create table: %w", err)
	}
	return &PostgresBook{db: db}, nil
}

func (b *PostgresBook) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("loanbook: nil record")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.PAN = strings.ToUpper(strings.TrimSpace(rec.PAN))
	if _, err := b.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return fmt.Errorf("loanbook: insert: %w", err)
	}
	return nil
}

func (b *PostgresBook) MostRecentByName(ctx context.Context, name string) (*Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNoHistory
	}

	rec := new(Record)
	err := b.db.NewSelect().
		Model(rec).
		Where("lower(name) = lower(?)", name).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("loanbook: select: %w", err)
	}
	return rec, nil
}

func (b *PostgresBook) Close() error {
	return b.db.Close()
}

// MemoryBook keeps records in memory, mainly for tests and local runs
// without a database. Tool invocations on different threads share one
// book, so access is locked.
type MemoryBook struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryBook() *MemoryBook {
	return &MemoryBook{}
}

func (b *MemoryBook) Save(_ context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("loanbook: nil record")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.ID = int64(len(b.records) + 1)
	b.records = append(b.records, cp)
	rec.ID = cp.ID
	return nil
}

func (b *MemoryBook) MostRecentByName(_ context.Context, name string) (*Record, error) {
	name = strings.TrimSpace(name)
	b.mu.RLock()
	defer b.mu.RUnlock()
	var best *Record
	for i := range b.records {
		rec := &b.records[i]
		if !strings.EqualFold(rec.Name, name) {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, ErrNoHistory
	}
	cp := *best
	return &cp, nil
}
