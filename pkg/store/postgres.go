package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{name: "postgres", numbered: true, forUpdate: " FOR UPDATE"}

// NewPostgresStore connects to Postgres and initializes the schema. Loan rows
// are locked with SELECT ... FOR UPDATE inside transactions.
func NewPostgresStore(ctx context.Context, databaseURL string, opts Options) (*SQLStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresStore: open: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewPostgresStore: ping: %w", err)
	}

	s := &SQLStore{sqlQueries: sqlQueries{q: db, d: postgresDialect}, db: db, log: opts.logger()}
	if err := s.initPostgresSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewPostgresStore: schema: %w", err)
	}
	s.log.Info("postgres store ready")
	return s, nil
}

func (s *SQLStore) initPostgresSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS customers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		contact TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		id UUID PRIMARY KEY,
		customer_id UUID NOT NULL REFERENCES customers(id),
		principal NUMERIC NOT NULL,
		months INTEGER NOT NULL,
		interest_rate NUMERIC NOT NULL DEFAULT 0,
		service_fee NUMERIC NOT NULL DEFAULT 0,
		gross_receivable NUMERIC NOT NULL,
		penalty NUMERIC NOT NULL DEFAULT 0,
		overall_balance NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS installments (
		id UUID PRIMARY KEY,
		loan_id UUID NOT NULL REFERENCES loans(id),
		seq INTEGER NOT NULL,
		to_pay NUMERIC NOT NULL,
		original_to_pay NUMERIC,
		amount NUMERIC NOT NULL DEFAULT 0,
		schedule TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE(loan_id, seq)
	);
	CREATE TABLE IF NOT EXISTS ledger_entries (
		entry_no BIGSERIAL PRIMARY KEY,
		id UUID NOT NULL UNIQUE,
		loan_id UUID NOT NULL REFERENCES loans(id),
		installment_id UUID NOT NULL REFERENCES installments(id),
		amount NUMERIC NOT NULL,
		method TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		timestamp TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_loan ON ledger_entries(loan_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
