package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendBook/pkg/models"
	"github.com/mcclellann/lendBook/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type PenaltyRequest struct {
	LoanID uuid.UUID
	Amount decimal.Decimal
	Reason string
	Date   time.Time
}

func (r PenaltyRequest) validate() error {
	switch {
	case r.LoanID == uuid.Nil:
		return fmt.Errorf("%w: loan id is required", models.ErrValidation)
	case !r.Amount.IsPositive():
		return fmt.Errorf("%w: penalty amount must be greater than zero", models.ErrValidation)
	}
	return nil
}

// PenaltyResult reports where a penalty landed.
type PenaltyResult struct {
	Loan        *models.Loan        `json:"loan"`
	Installment *models.Installment `json:"installment"`
	Entry       *models.LedgerEntry `json:"entry"`
}

// PenaltyTarget picks the installment a penalty lands on: the first one not
// yet Paid, or the last one when every installment is Paid. It returns nil
// for an empty schedule.
func PenaltyTarget(insts []*models.Installment) *models.Installment {
	if len(insts) == 0 {
		return nil
	}
	for _, inst := range insts {
		if inst.Status != models.InstallmentPaid {
			return inst
		}
	}
	return insts[len(insts)-1]
}

// AddPenalty raises the amount due on the target installment, bumps the loan's
// penalty total, records a "Penalty" ledger entry and reconciles the loan.
// The installment's stored status is left as is.
func (l *Ledger) AddPenalty(ctx context.Context, req PenaltyRequest) (*PenaltyResult, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("AddPenalty: %w", err)
	}
	if req.Date.IsZero() {
		req.Date = l.now()
	}

	var result *PenaltyResult
	err := l.storage.WithTx(ctx, func(q store.Queries) error {
		loan, err := q.GetLoanForUpdate(ctx, req.LoanID)
		if err != nil {
			return err
		}
		switch loan.Status {
		case models.LoanStatusCompleted, models.LoanStatusCancelled, models.LoanStatusDeleted:
			return fmt.Errorf("%w: cannot penalize a loan that is %s", models.ErrInvalidState, loan.Status)
		}

		insts, err := q.GetInstallmentsForLoan(ctx, loan.ID)
		if err != nil {
			return err
		}
		target := PenaltyTarget(insts)
		if target == nil {
			return fmt.Errorf("%w: loan %s has no installments", models.ErrInvalidState, loan.ID)
		}

		if target.OriginalToPay == nil {
			original := target.ToPay
			target.OriginalToPay = &original
		}
		target.ToPay = target.ToPay.Add(req.Amount)
		target.UpdatedAt = l.now()
		if err := q.UpdateInstallment(ctx, target); err != nil {
			return err
		}

		loan.Penalty = loan.Penalty.Add(req.Amount)
		entry := &models.LedgerEntry{
			ID:            uuid.New(),
			LoanID:        loan.ID,
			InstallmentID: target.ID,
			Amount:        req.Amount,
			Method:        models.MethodPenalty,
			Notes:         req.Reason,
			Timestamp:     req.Date,
		}
		if err := q.CreateLedgerEntry(ctx, entry); err != nil {
			return err
		}

		if _, err := l.reconcile(ctx, q, loan, true); err != nil {
			return err
		}
		result = &PenaltyResult{Loan: loan, Installment: target, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("AddPenalty: %w", err)
	}

	l.loanLog(req.LoanID).WithFields(logrus.Fields{
		"installment_id": result.Installment.ID,
		"amount":         req.Amount.String(),
		"penalty_total":  result.Loan.Penalty.String(),
	}).Info("penalty added")
	return result, nil
}
