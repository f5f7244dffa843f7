package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcclellann/lendBook/pkg/models"
)

// Queries defines the row operations on customers, loans, installments and
// ledger entries. It is implemented both by the store itself and by the
// transaction handle passed to WithTx.
type Queries interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	// GetLoanForUpdate reads a loan and locks its row until the surrounding
	// transaction ends. Outside a transaction it behaves like GetLoan.
	GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	GetAllLoans(ctx context.Context) ([]*models.Loan, error)
	GetAllListedLoans(ctx context.Context) ([]*models.Loan, error)

	CreateInstallment(ctx context.Context, inst *models.Installment) error
	GetInstallment(ctx context.Context, id uuid.UUID) (*models.Installment, error)
	GetInstallmentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error)
	UpdateInstallment(ctx context.Context, inst *models.Installment) error

	CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	GetLedgerEntriesForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.LedgerEntry, error)
}

// Storage defines the interface for database operations related to loans and
// their repayment ledger.
type Storage interface {
	Queries

	// WithTx runs fn inside a single database transaction. The transaction
	// commits only if fn returns nil; otherwise every write made through q is
	// rolled back.
	WithTx(ctx context.Context, fn func(q Queries) error) error

	Ping(ctx context.Context) error
	Close() error
}
