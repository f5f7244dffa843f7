package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendBook/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestPostgresStore starts a throwaway Postgres container. The test is
// skipped under -short or when no container runtime is reachable.
func newTestPostgresStore(t *testing.T) *SQLStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("lendbook_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	s, err := NewPostgresStore(ctx, connStr, Options{MaxOpenConns: 5})
	if err != nil {
		t.Fatalf("Failed to create postgres store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	loan := seedLoan(t, s)
	insts := seedInstallments(t, s, loan, 1125, 1125)

	err := s.WithTx(ctx, func(q Queries) error {
		locked, err := q.GetLoanForUpdate(ctx, loan.ID)
		if err != nil {
			return err
		}
		insts[0].Amount = decimal.NewFromInt(1125)
		insts[0].Status = models.InstallmentPaid
		if err := q.UpdateInstallment(ctx, insts[0]); err != nil {
			return err
		}
		if err := q.CreateLedgerEntry(ctx, &models.LedgerEntry{
			ID:            uuid.New(),
			LoanID:        loan.ID,
			InstallmentID: insts[0].ID,
			Amount:        decimal.NewFromInt(1125),
			Method:        models.MethodCash,
			Timestamp:     time.Now().UTC(),
		}); err != nil {
			return err
		}
		locked.OverallBalance = decimal.NewFromInt(1125)
		locked.Status = models.LoanStatusPartial
		return q.UpdateLoan(ctx, locked)
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	fetched, err := s.GetLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	if fetched.Status != models.LoanStatusPartial || !fetched.OverallBalance.Equal(decimal.NewFromInt(1125)) {
		t.Errorf("Unexpected loan state: status %q balance %s", fetched.Status, fetched.OverallBalance)
	}

	stored, err := s.GetInstallmentsForLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get installments: %v", err)
	}
	if len(stored) != 2 || stored[0].Status != models.InstallmentPaid || stored[1].Status != models.InstallmentNotPaid {
		t.Errorf("Unexpected installments: %+v", stored)
	}

	entries, err := s.GetLedgerEntriesForLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get ledger entries: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 ledger entry, got %d", len(entries))
	}

	_, err = s.GetInstallment(ctx, uuid.New())
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
