package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendBook/pkg/models"
	"github.com/mcclellann/lendBook/pkg/store"
	"github.com/sirupsen/logrus"
)

// Ledger handles the business logic for loans, their repayment schedule and
// the payment history. Every mutation runs inside a single store transaction
// that locks the loan row first, so operations on one loan never interleave.
type Ledger struct {
	storage store.Storage
	log     *logrus.Logger
	now     func() time.Time
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, log *logrus.Logger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{
		storage: s,
		log:     log,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for bookkeeping timestamps.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Ledger) loanLog(loanID uuid.UUID) *logrus.Entry {
	return l.log.WithField("loan_id", loanID)
}

// CreateCustomer registers the borrower a loan will reference.
func (l *Ledger) CreateCustomer(ctx context.Context, name, contact string) (*models.Customer, error) {
	if name == "" {
		return nil, fmt.Errorf("CreateCustomer: %w: name is required", models.ErrValidation)
	}
	c := &models.Customer{
		ID:        uuid.New(),
		Name:      name,
		Contact:   contact,
		CreatedAt: l.now(),
	}
	if err := l.storage.CreateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("CreateCustomer: %w", err)
	}
	return c, nil
}

// GetCustomer retrieves a customer by its ID.
func (l *Ledger) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return l.storage.GetCustomer(ctx, id)
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(ctx, id)
}

// ListLoans returns every loan that has not been soft-deleted.
func (l *Ledger) ListLoans(ctx context.Context) ([]*models.Loan, error) {
	return l.storage.GetAllListedLoans(ctx)
}

// GetInstallments returns the loan's schedule in order.
func (l *Ledger) GetInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error) {
	if _, err := l.storage.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return l.storage.GetInstallmentsForLoan(ctx, loanID)
}

// GetLedger returns the loan's payment history, oldest first.
func (l *Ledger) GetLedger(ctx context.Context, loanID uuid.UUID) ([]*models.LedgerEntry, error) {
	if _, err := l.storage.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return l.storage.GetLedgerEntriesForLoan(ctx, loanID)
}
