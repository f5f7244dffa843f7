package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusRecentlyAdded LoanStatus = "Recently Added"
	LoanStatusActive        LoanStatus = "Active"
	LoanStatusPartial       LoanStatus = "Partial"
	LoanStatusCompleted     LoanStatus = "Completed"
	LoanStatusCancelled     LoanStatus = "Cancelled"
	LoanStatusDeleted       LoanStatus = "Deleted"
)

func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanStatusRecentlyAdded, LoanStatusActive, LoanStatusPartial,
		LoanStatusCompleted, LoanStatusCancelled, LoanStatusDeleted:
		return true
	}
	return false
}

// IsExplicitTerminal reports whether the status was reached through an explicit
// action (cancel, delete) that reconciliation must not overwrite.
func (s LoanStatus) IsExplicitTerminal() bool {
	return s == LoanStatusCancelled || s == LoanStatusDeleted
}

type InstallmentStatus string

const (
	InstallmentNotPaid InstallmentStatus = "Not Paid"
	InstallmentPaid    InstallmentStatus = "Paid"
)

// MethodPenalty tags ledger entries written by the penalty injector.
const MethodPenalty = "Penalty"

// MethodCash is the default method for ordinary payments.
const MethodCash = "Cash"

type Customer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
}

type Loan struct {
	ID              uuid.UUID       `json:"id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	Principal       decimal.Decimal `json:"principal"`
	Months          int             `json:"months"`
	InterestRate    decimal.Decimal `json:"interest_rate"`    // Monthly rate used to price the loan
	ServiceFee      decimal.Decimal `json:"service_fee"`      // One-off origination fee
	GrossReceivable decimal.Decimal `json:"gross_receivable"` // Total amount ultimately owed
	Penalty         decimal.Decimal `json:"penalty"`          // Cumulative penalties injected
	OverallBalance  decimal.Decimal `json:"overall_balance"`  // Derived by reconciliation only
	Status          LoanStatus      `json:"status"`
	StartDate       time.Time       `json:"start_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Installment is one scheduled receipt of a loan's repayment plan.
type Installment struct {
	ID     uuid.UUID       `json:"id"`
	LoanID uuid.UUID       `json:"loan_id"`
	Seq    int             `json:"seq"` // 0-based position in the schedule
	ToPay  decimal.Decimal `json:"to_pay"`
	// OriginalToPay is the pre-penalty value of ToPay, set the first time a
	// penalty lands on the installment.
	OriginalToPay *decimal.Decimal  `json:"original_to_pay,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Schedule      time.Time         `json:"schedule"`
	Status        InstallmentStatus `json:"status"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// StillOwed returns ToPay minus Amount.
func (i *Installment) StillOwed() decimal.Decimal {
	return i.ToPay.Sub(i.Amount)
}

// LedgerEntry is an immutable record of one allocation step.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id"`
	LoanID        uuid.UUID       `json:"loan_id"`
	InstallmentID uuid.UUID       `json:"installment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Notes         string          `json:"notes"`
	Timestamp     time.Time       `json:"timestamp"`
}
