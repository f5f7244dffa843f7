package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	_ "github.com/mattn/go-sqlite3"
)

// Options tunes the connection pool and driver behaviour.
type Options struct {
	BusyTimeout  time.Duration // SQLite only
	MaxOpenConns int
	Logger       *logrus.Logger
}

func (o Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

var sqliteDialect = dialect{name: "sqlite3"}

// sqliteDSN turns a file path into a DSN with foreign keys, WAL and immediate
// write transactions. Immediate transactions take the write lock at BEGIN, so
// two transactions touching the same loan never interleave their reads.
func sqliteDSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	params := fmt.Sprintf("_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=%d",
		busyTimeout.Milliseconds())
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// NewSQLiteStore opens (creating if needed) a SQLite database file and
// initializes the schema.
func NewSQLiteStore(ctx context.Context, path string, opts Options) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLStore{sqlQueries: sqlQueries{q: db, d: sqliteDialect}, db: db, log: opts.logger()}
	if err := s.initSQLiteSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	s.log.WithField("path", path).Info("sqlite store ready")
	return s, nil
}

// initSQLiteSchema creates the tables if they don't already exist.
// Decimal fields are TEXT so no precision is lost.
func (s *SQLStore) initSQLiteSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		principal TEXT NOT NULL,
		months INTEGER NOT NULL,
		interest_rate TEXT NOT NULL DEFAULT '0',
		service_fee TEXT NOT NULL DEFAULT '0',
		gross_receivable TEXT NOT NULL,
		penalty TEXT NOT NULL DEFAULT '0',
		overall_balance TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(customer_id) REFERENCES customers(id)
	);
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		to_pay TEXT NOT NULL,
		original_to_pay TEXT,
		amount TEXT NOT NULL DEFAULT '0',
		schedule DATETIME NOT NULL,
		status TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(loan_id, seq),
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS ledger_entries (
		entry_no INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		loan_id TEXT NOT NULL,
		installment_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id),
		FOREIGN KEY(installment_id) REFERENCES installments(id)
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_loan ON ledger_entries(loan_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
