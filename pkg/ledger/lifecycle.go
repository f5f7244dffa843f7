package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/lendBook/pkg/models"
	"github.com/mcclellann/lendBook/pkg/store"
)

// CancelLoan moves a loan to Cancelled. Completed and Deleted loans cannot be
// cancelled; cancelling an already Cancelled loan is a no-op.
func (l *Ledger) CancelLoan(ctx context.Context, loanID uuid.UUID) (*models.Loan, error) {
	loan, err := l.transition(ctx, loanID, func(loan *models.Loan) error {
		switch loan.Status {
		case models.LoanStatusCompleted, models.LoanStatusDeleted:
			return fmt.Errorf("%w: cannot cancel a loan that is %s", models.ErrInvalidState, loan.Status)
		}
		loan.Status = models.LoanStatusCancelled
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("CancelLoan: %w", err)
	}
	l.loanLog(loanID).Info("loan cancelled")
	return loan, nil
}

// SoftDeleteLoan flags a loan as Deleted. Its rows stay in place but it no
// longer shows up in ListLoans.
func (l *Ledger) SoftDeleteLoan(ctx context.Context, loanID uuid.UUID) (*models.Loan, error) {
	loan, err := l.transition(ctx, loanID, func(loan *models.Loan) error {
		loan.Status = models.LoanStatusDeleted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("SoftDeleteLoan: %w", err)
	}
	l.loanLog(loanID).Info("loan deleted")
	return loan, nil
}

// SetStatus overwrites a loan's status directly.
func (l *Ledger) SetStatus(ctx context.Context, loanID uuid.UUID, status models.LoanStatus) (*models.Loan, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("SetStatus: %w: unknown status %q", models.ErrValidation, status)
	}
	loan, err := l.transition(ctx, loanID, func(loan *models.Loan) error {
		loan.Status = status
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("SetStatus: %w", err)
	}
	l.loanLog(loanID).WithField("status", status).Info("loan status set")
	return loan, nil
}

func (l *Ledger) transition(ctx context.Context, loanID uuid.UUID, apply func(*models.Loan) error) (*models.Loan, error) {
	var loan *models.Loan
	err := l.storage.WithTx(ctx, func(q store.Queries) error {
		var err error
		loan, err = q.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if err := apply(loan); err != nil {
			return err
		}
		loan.UpdatedAt = l.now()
		return q.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}
