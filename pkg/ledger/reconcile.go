package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/lendBook/pkg/models"
	"github.com/mcclellann/lendBook/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Outstanding returns max(0, sum(to_pay) - sum(amount)).
func Outstanding(insts []*models.Installment) decimal.Decimal {
	due, paid := decimal.Zero, decimal.Zero
	for _, inst := range insts {
		due = due.Add(inst.ToPay)
		paid = paid.Add(inst.Amount)
	}
	balance := due.Sub(paid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// DeriveStatus computes a loan's status from its installments: Completed when
// every installment is Paid, Partial when anything has been paid, else Active.
// It must not be called with an empty slice.
func DeriveStatus(insts []*models.Installment) models.LoanStatus {
	allPaid := true
	anyPaid := false
	for _, inst := range insts {
		if inst.Status != models.InstallmentPaid {
			allPaid = false
		}
		if inst.Amount.IsPositive() {
			anyPaid = true
		}
	}
	switch {
	case allPaid:
		return models.LoanStatusCompleted
	case anyPaid:
		return models.LoanStatusPartial
	default:
		return models.LoanStatusActive
	}
}

// Reconciliation is the outcome of recomputing one loan.
type Reconciliation struct {
	LoanID         uuid.UUID         `json:"loan_id"`
	OverallBalance decimal.Decimal   `json:"overall_balance"`
	Status         models.LoanStatus `json:"status"`
	Changed        bool              `json:"changed"`
	// Skipped is set when the loan has no installments and nothing was written.
	Skipped bool `json:"skipped"`
}

// Reconcile recomputes the loan's overall balance and status from its
// installments and stores them.
func (l *Ledger) Reconcile(ctx context.Context, loanID uuid.UUID) (*Reconciliation, error) {
	var rec *Reconciliation
	err := l.storage.WithTx(ctx, func(q store.Queries) error {
		loan, err := q.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		rec, err = l.reconcile(ctx, q, loan, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}
	return rec, nil
}

// reconcile derives the balance and status of loan, which the caller has
// already locked, and writes them when they changed. pending forces the write
// for a caller that modified loan itself (such as the penalty accumulator).
// Cancelled and Deleted loans keep their status.
func (l *Ledger) reconcile(ctx context.Context, q store.Queries, loan *models.Loan, pending bool) (*Reconciliation, error) {
	insts, err := q.GetInstallmentsForLoan(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return &Reconciliation{LoanID: loan.ID, OverallBalance: loan.OverallBalance, Status: loan.Status, Skipped: true}, nil
	}

	balance := Outstanding(insts)
	status := loan.Status
	if !status.IsExplicitTerminal() {
		status = DeriveStatus(insts)
	}
	changed := !balance.Equal(loan.OverallBalance) || status != loan.Status
	if !changed && !pending {
		return &Reconciliation{LoanID: loan.ID, OverallBalance: balance, Status: status}, nil
	}

	loan.OverallBalance = balance
	loan.Status = status
	loan.UpdatedAt = l.now()
	if err := q.UpdateLoan(ctx, loan); err != nil {
		return nil, err
	}
	return &Reconciliation{LoanID: loan.ID, OverallBalance: balance, Status: status, Changed: changed}, nil
}

// BulkResult summarises a RecalculateAllBalances run.
type BulkResult struct {
	Processed int `json:"processed"`
	Changed   int `json:"changed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RecalculateAllBalances reconciles every stored loan, each in its own
// transaction. A failure on one loan is logged and counted; the sweep goes on.
func (l *Ledger) RecalculateAllBalances(ctx context.Context) (*BulkResult, error) {
	loans, err := l.storage.GetAllLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("RecalculateAllBalances: %w", err)
	}

	res := &BulkResult{}
	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("RecalculateAllBalances: %w", err)
		}
		rec, err := l.Reconcile(ctx, loan.ID)
		if err != nil {
			res.Failed++
			l.loanLog(loan.ID).WithError(err).Error("reconciliation failed")
			continue
		}
		res.Processed++
		if rec.Skipped {
			res.Skipped++
		}
		if rec.Changed {
			res.Changed++
		}
	}

	l.log.WithFields(logrus.Fields{
		"processed": res.Processed,
		"changed":   res.Changed,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
	}).Info("balances recalculated")
	return res, nil
}
