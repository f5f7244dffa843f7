package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/lendBook/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	customerColumns    = `id, name, contact, created_at`
	loanColumns        = `id, customer_id, principal, months, interest_rate, service_fee, gross_receivable, penalty, overall_balance, status, start_date, created_at, updated_at`
	installmentColumns = `id, loan_id, seq, to_pay, original_to_pay, amount, schedule, status, updated_at`
	ledgerColumns      = `id, loan_id, installment_id, amount, method, notes, timestamp`
)

type scanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	name      string
	numbered  bool   // $1, $2 placeholders instead of ?
	forUpdate string // row lock suffix for SELECT inside a transaction
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlQueries implements Queries on top of a *sql.DB or *sql.Tx.
type sqlQueries struct {
	q queryer
	d dialect
}

func (s *sqlQueries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *sqlQueries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *sqlQueries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.d.rebind(query), args...)
}

func expectOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}

// CreateCustomer inserts a new customer.
func (s *sqlQueries) CreateCustomer(ctx context.Context, c *models.Customer) error {
	_, err := s.exec(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Contact, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// GetCustomer retrieves a customer by its ID.
func (s *sqlQueries) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	err := s.queryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Contact, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

// CreateLoan inserts a new loan.
func (s *sqlQueries) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := s.exec(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.CustomerID, loan.Principal, loan.Months, loan.InterestRate, loan.ServiceFee,
		loan.GrossReceivable, loan.Penalty, loan.OverallBalance, string(loan.Status),
		loan.StartDate, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *sqlQueries) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return s.getLoan(ctx, id, "")
}

func (s *sqlQueries) GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return s.getLoan(ctx, id, s.d.forUpdate)
}

func (s *sqlQueries) getLoan(ctx context.Context, id uuid.UUID, suffix string) (*models.Loan, error) {
	row := s.queryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`+suffix, id)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// UpdateLoan writes every mutable loan column.
func (s *sqlQueries) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	result, err := s.exec(ctx,
		`UPDATE loans SET principal = ?, months = ?, interest_rate = ?, service_fee = ?, gross_receivable = ?,
		penalty = ?, overall_balance = ?, status = ?, start_date = ?, updated_at = ? WHERE id = ?`,
		loan.Principal, loan.Months, loan.InterestRate, loan.ServiceFee, loan.GrossReceivable,
		loan.Penalty, loan.OverallBalance, string(loan.Status), loan.StartDate, loan.UpdatedAt, loan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return expectOneRow(result, "loan "+loan.ID.String())
}

// GetAllLoans retrieves every loan, deleted ones included.
func (s *sqlQueries) GetAllLoans(ctx context.Context) ([]*models.Loan, error) {
	rows, err := s.query(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

// GetAllListedLoans retrieves every loan that has not been soft-deleted.
func (s *sqlQueries) GetAllListedLoans(ctx context.Context) ([]*models.Loan, error) {
	rows, err := s.query(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE status <> ? ORDER BY created_at, id`,
		string(models.LoanStatusDeleted),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get listed loans: %w", err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

func scanLoan(row scanner) (*models.Loan, error) {
	var loan models.Loan
	var status string
	err := row.Scan(&loan.ID, &loan.CustomerID, &loan.Principal, &loan.Months, &loan.InterestRate,
		&loan.ServiceFee, &loan.GrossReceivable, &loan.Penalty, &loan.OverallBalance, &status,
		&loan.StartDate, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	loan.Status = models.LoanStatus(status)
	return &loan, nil
}

func scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// CreateInstallment inserts one schedule row.
func (s *sqlQueries) CreateInstallment(ctx context.Context, inst *models.Installment) error {
	_, err := s.exec(ctx,
		`INSERT INTO installments (`+installmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.LoanID, inst.Seq, inst.ToPay, nullDecimal(inst.OriginalToPay), inst.Amount,
		inst.Schedule, string(inst.Status), inst.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create installment: %w", err)
	}
	return nil
}

// GetInstallment retrieves an installment by its ID.
func (s *sqlQueries) GetInstallment(ctx context.Context, id uuid.UUID) (*models.Installment, error) {
	row := s.queryRow(ctx, `SELECT `+installmentColumns+` FROM installments WHERE id = ?`, id)
	inst, err := scanInstallment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("installment %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	return inst, nil
}

// GetInstallmentsForLoan returns a loan's installments in schedule order.
func (s *sqlQueries) GetInstallmentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error) {
	rows, err := s.query(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE loan_id = ? ORDER BY seq ASC`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var insts []*models.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment row: %w", err)
		}
		insts = append(insts, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for loan installments: %w", err)
	}
	return insts, nil
}

// UpdateInstallment writes the mutable installment columns.
func (s *sqlQueries) UpdateInstallment(ctx context.Context, inst *models.Installment) error {
	result, err := s.exec(ctx,
		`UPDATE installments SET to_pay = ?, original_to_pay = ?, amount = ?, status = ?, updated_at = ? WHERE id = ?`,
		inst.ToPay, nullDecimal(inst.OriginalToPay), inst.Amount, string(inst.Status), inst.UpdatedAt, inst.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	return expectOneRow(result, "installment "+inst.ID.String())
}

func scanInstallment(row scanner) (*models.Installment, error) {
	var inst models.Installment
	var original decimal.NullDecimal
	var status string
	err := row.Scan(&inst.ID, &inst.LoanID, &inst.Seq, &inst.ToPay, &original, &inst.Amount,
		&inst.Schedule, &status, &inst.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if original.Valid {
		inst.OriginalToPay = &original.Decimal
	}
	inst.Status = models.InstallmentStatus(status)
	return &inst, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// CreateLedgerEntry appends an entry to the audit trail.
func (s *sqlQueries) CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	_, err := s.exec(ctx,
		`INSERT INTO ledger_entries (`+ledgerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.LoanID, e.InstallmentID, e.Amount, e.Method, e.Notes, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

// GetLedgerEntriesForLoan returns a loan's entries in the order they were appended.
func (s *sqlQueries) GetLedgerEntriesForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := s.query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE loan_id = ? ORDER BY entry_no ASC`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.LoanID, &e.InstallmentID, &e.Amount, &e.Method, &e.Notes, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for ledger entries: %w", err)
	}
	return entries, nil
}

// SQLStore is a Storage backed by database/sql.
type SQLStore struct {
	sqlQueries
	db  *sql.DB
	log *logrus.Logger
}

// WithTx runs fn inside a transaction. See Storage.
func (s *SQLStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlQueries{q: tx, d: s.d}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the name of the SQL engine behind the store.
func (s *SQLStore) Driver() string {
	return s.d.name
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
