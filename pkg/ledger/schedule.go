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

// LoanTerms are the origination inputs of a loan.
type LoanTerms struct {
	CustomerID      uuid.UUID
	Principal       decimal.Decimal
	Months          int
	InterestRate    decimal.Decimal
	ServiceFee      decimal.Decimal
	GrossReceivable decimal.Decimal
	StartDate       time.Time
}

func (t LoanTerms) validate() error {
	switch {
	case t.CustomerID == uuid.Nil:
		return fmt.Errorf("%w: customer id is required", models.ErrValidation)
	case t.Months < 1:
		return fmt.Errorf("%w: months must be at least 1", models.ErrValidation)
	case !t.Principal.IsPositive():
		return fmt.Errorf("%w: principal must be positive", models.ErrValidation)
	case !t.GrossReceivable.IsPositive():
		return fmt.Errorf("%w: gross receivable must be positive", models.ErrValidation)
	case t.InterestRate.IsNegative() || t.ServiceFee.IsNegative():
		return fmt.Errorf("%w: interest rate and service fee cannot be negative", models.ErrValidation)
	case t.StartDate.IsZero():
		return fmt.Errorf("%w: start date is required", models.ErrValidation)
	}
	return nil
}

// ScheduleLine is one period of a generated schedule.
type ScheduleLine struct {
	Seq   int
	ToPay decimal.Decimal
	Due   time.Time
}

// BuildSchedule splits gross evenly over months, one period per calendar
// month starting at start. Each share is rounded to cents; the rounding
// remainder is not pushed onto any period, so the shares may not add up to
// gross exactly.
func BuildSchedule(gross decimal.Decimal, months int, start time.Time) []ScheduleLine {
	if months < 1 {
		return nil
	}
	share := gross.DivRound(decimal.NewFromInt(int64(months)), 2)
	lines := make([]ScheduleLine, months)
	for i := 0; i < months; i++ {
		lines[i] = ScheduleLine{Seq: i, ToPay: share, Due: start.AddDate(0, i, 0)}
	}
	return lines
}

// CreateLoan originates a loan and writes its full installment schedule in
// one transaction. The loan starts as "Recently Added" and keeps that status
// until the first payment or penalty runs reconciliation.
func (l *Ledger) CreateLoan(ctx context.Context, terms LoanTerms) (*models.Loan, []*models.Installment, error) {
	if err := terms.validate(); err != nil {
		return nil, nil, fmt.Errorf("CreateLoan: %w", err)
	}

	now := l.now()
	loan := &models.Loan{
		ID:              uuid.New(),
		CustomerID:      terms.CustomerID,
		Principal:       terms.Principal,
		Months:          terms.Months,
		InterestRate:    terms.InterestRate,
		ServiceFee:      terms.ServiceFee,
		GrossReceivable: terms.GrossReceivable,
		Penalty:         decimal.Zero,
		Status:          models.LoanStatusRecentlyAdded,
		StartDate:       terms.StartDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	lines := BuildSchedule(terms.GrossReceivable, terms.Months, terms.StartDate)
	insts := make([]*models.Installment, 0, len(lines))
	for _, line := range lines {
		insts = append(insts, &models.Installment{
			ID:        uuid.New(),
			LoanID:    loan.ID,
			Seq:       line.Seq,
			ToPay:     line.ToPay,
			Amount:    decimal.Zero,
			Schedule:  line.Due,
			Status:    models.InstallmentNotPaid,
			UpdatedAt: now,
		})
	}
	loan.OverallBalance = Outstanding(insts)

	err := l.storage.WithTx(ctx, func(q store.Queries) error {
		if _, err := q.GetCustomer(ctx, terms.CustomerID); err != nil {
			return err
		}
		if err := q.CreateLoan(ctx, loan); err != nil {
			return err
		}
		for _, inst := range insts {
			if err := q.CreateInstallment(ctx, inst); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("CreateLoan: %w", err)
	}

	l.loanLog(loan.ID).WithFields(logrus.Fields{
		"customer_id":      loan.CustomerID,
		"months":           loan.Months,
		"gross_receivable": loan.GrossReceivable.String(),
	}).Info("loan created")
	return loan, insts, nil
}
