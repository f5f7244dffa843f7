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

// PaymentRequest describes an incoming payment against a loan.
type PaymentRequest struct {
	LoanID uuid.UUID
	// StartInstallmentID is the first installment the payment may touch.
	// Earlier installments are never paid by this request, even if still owed.
	StartInstallmentID uuid.UUID
	Amount             decimal.Decimal
	Timestamp          time.Time
	Method             string
	Notes              string
}

func (r PaymentRequest) validate() error {
	switch {
	case r.LoanID == uuid.Nil:
		return fmt.Errorf("%w: loan id is required", models.ErrValidation)
	case r.StartInstallmentID == uuid.Nil:
		return fmt.Errorf("%w: installment id is required", models.ErrValidation)
	case !r.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be greater than zero", models.ErrValidation)
	}
	return nil
}

// Allocation is the share of a payment applied to one installment.
type Allocation struct {
	InstallmentID uuid.UUID                `json:"installment_id"`
	Seq           int                      `json:"seq"`
	Applied       decimal.Decimal          `json:"applied"`
	Status        models.InstallmentStatus `json:"status"`
}

// PaymentResult reports what a payment did.
type PaymentResult struct {
	Loan        *models.Loan          `json:"loan"`
	Allocations []Allocation          `json:"allocations"`
	Entries     []*models.LedgerEntry `json:"entries"`
	// Unapplied is the part of the payment left over once every installment
	// from the starting one onward was settled. It is not credited anywhere.
	Unapplied decimal.Decimal `json:"unapplied"`
}

// Allocate walks insts from the installment with id start onward and applies
// amount in order, skipping installments that are Paid or have nothing owed.
// It mutates the installments it touches and returns the allocations and the
// unapplied remainder. found is false when start is not among insts.
func Allocate(insts []*models.Installment, start uuid.UUID, amount decimal.Decimal) (allocs []Allocation, remaining decimal.Decimal, found bool) {
	remaining = amount
	for _, inst := range insts {
		if !found {
			if inst.ID != start {
				continue
			}
			found = true
		}
		if !remaining.IsPositive() {
			break
		}
		if inst.Status == models.InstallmentPaid {
			continue
		}
		owed := inst.StillOwed()
		if !owed.IsPositive() {
			continue
		}

		apply := decimal.Min(owed, remaining)
		inst.Amount = inst.Amount.Add(apply)
		if inst.Amount.GreaterThanOrEqual(inst.ToPay) {
			inst.Status = models.InstallmentPaid
		} else {
			inst.Status = models.InstallmentNotPaid
		}
		remaining = remaining.Sub(apply)
		allocs = append(allocs, Allocation{InstallmentID: inst.ID, Seq: inst.Seq, Applied: apply, Status: inst.Status})
	}
	return allocs, remaining, found
}

// ApplyPayment distributes a payment over the loan's schedule in a waterfall
// starting at the requested installment, appends one ledger entry per
// installment touched, and reconciles the loan. The whole sequence is one
// transaction.
func (l *Ledger) ApplyPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("ApplyPayment: %w", err)
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = l.now()
	}
	if req.Method == "" {
		req.Method = models.MethodCash
	}

	var result *PaymentResult
	err := l.storage.WithTx(ctx, func(q store.Queries) error {
		loan, err := q.GetLoanForUpdate(ctx, req.LoanID)
		if err != nil {
			return err
		}
		start, err := q.GetInstallment(ctx, req.StartInstallmentID)
		if err != nil {
			return err
		}
		if start.LoanID != loan.ID {
			return fmt.Errorf("installment %s on loan %s: %w", start.ID, loan.ID, models.ErrNotFound)
		}

		insts, err := q.GetInstallmentsForLoan(ctx, loan.ID)
		if err != nil {
			return err
		}
		allocs, remaining, found := Allocate(insts, start.ID, req.Amount)
		if !found {
			return fmt.Errorf("installment %s on loan %s: %w", start.ID, loan.ID, models.ErrNotFound)
		}

		byID := make(map[uuid.UUID]*models.Installment, len(insts))
		for _, inst := range insts {
			byID[inst.ID] = inst
		}
		now := l.now()
		entries := make([]*models.LedgerEntry, 0, len(allocs))
		for _, a := range allocs {
			inst := byID[a.InstallmentID]
			inst.UpdatedAt = now
			if err := q.UpdateInstallment(ctx, inst); err != nil {
				return err
			}
			entry := &models.LedgerEntry{
				ID:            uuid.New(),
				LoanID:        loan.ID,
				InstallmentID: inst.ID,
				Amount:        a.Applied,
				Method:        req.Method,
				Notes:         req.Notes,
				Timestamp:     req.Timestamp,
			}
			if err := q.CreateLedgerEntry(ctx, entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		if _, err := l.reconcile(ctx, q, loan, false); err != nil {
			return err
		}
		result = &PaymentResult{Loan: loan, Allocations: allocs, Entries: entries, Unapplied: remaining}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ApplyPayment: %w", err)
	}

	log := l.loanLog(req.LoanID).WithFields(logrus.Fields{
		"installment_id": req.StartInstallmentID,
		"amount":         req.Amount.String(),
		"allocations":    len(result.Allocations),
		"status":         result.Loan.Status,
	})
	if result.Unapplied.IsPositive() {
		log.WithField("unapplied", result.Unapplied.String()).Warn("payment exceeded outstanding schedule, remainder discarded")
	} else {
		log.Info("payment applied")
	}
	return result, nil
}
