package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendBook/pkg/models"
	"github.com/shopspring/decimal"
)

func newTestSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test_store.db"), Options{})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedLoan(t *testing.T, q Queries) *models.Loan {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	customer := &models.Customer{ID: uuid.New(), Name: "Ada", Contact: "ada@example.com", CreatedAt: now}
	if err := q.CreateCustomer(ctx, customer); err != nil {
		t.Fatalf("Failed to create customer: %v", err)
	}

	loan := &models.Loan{
		ID:              uuid.New(),
		CustomerID:      customer.ID,
		Principal:       decimal.NewFromInt(2000),
		Months:          2,
		InterestRate:    decimal.NewFromFloat(0.05),
		ServiceFee:      decimal.NewFromInt(50),
		GrossReceivable: decimal.NewFromInt(2250),
		Penalty:         decimal.Zero,
		OverallBalance:  decimal.NewFromInt(2250),
		Status:          models.LoanStatusRecentlyAdded,
		StartDate:       time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := q.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}
	return loan
}

func seedInstallments(t *testing.T, q Queries, loan *models.Loan, toPay ...int64) []*models.Installment {
	t.Helper()
	var insts []*models.Installment
	for i, amt := range toPay {
		inst := &models.Installment{
			ID:        uuid.New(),
			LoanID:    loan.ID,
			Seq:       i,
			ToPay:     decimal.NewFromInt(amt),
			Amount:    decimal.Zero,
			Schedule:  loan.StartDate.AddDate(0, i, 0),
			Status:    models.InstallmentNotPaid,
			UpdatedAt: loan.UpdatedAt,
		}
		if err := q.CreateInstallment(context.Background(), inst); err != nil {
			t.Fatalf("Failed to create installment: %v", err)
		}
		insts = append(insts, inst)
	}
	return insts
}

func TestSQLiteStore_CreateAndGetLoan(t *testing.T) {
	s := newTestSQLiteStore(t)
	loan := seedLoan(t, s)

	fetched, err := s.GetLoan(context.Background(), loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}

	if fetched.CustomerID != loan.CustomerID {
		t.Errorf("Expected CustomerID %s, got %s", loan.CustomerID, fetched.CustomerID)
	}
	if !fetched.Principal.Equal(loan.Principal) {
		t.Errorf("Expected Principal %s, got %s", loan.Principal, fetched.Principal)
	}
	if !fetched.InterestRate.Equal(loan.InterestRate) {
		t.Errorf("Expected InterestRate %s, got %s", loan.InterestRate, fetched.InterestRate)
	}
	if fetched.Status != models.LoanStatusRecentlyAdded {
		t.Errorf("Expected status %q, got %q", models.LoanStatusRecentlyAdded, fetched.Status)
	}
	if !fetched.StartDate.Equal(loan.StartDate) {
		t.Errorf("Expected StartDate %s, got %s", loan.StartDate, fetched.StartDate)
	}
}

func TestSQLiteStore_GetLoanNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.GetLoan(context.Background(), uuid.New())
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	err = s.UpdateLoan(context.Background(), &models.Loan{ID: uuid.New(), Status: models.LoanStatusActive})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on update, got %v", err)
	}
}

func TestSQLiteStore_Installments(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	loan := seedLoan(t, s)
	seeded := seedInstallments(t, s, loan, 100, 200, 300)

	insts, err := s.GetInstallmentsForLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get installments: %v", err)
	}
	if len(insts) != 3 {
		t.Fatalf("Expected 3 installments, got %d", len(insts))
	}
	for i, inst := range insts {
		if inst.Seq != i {
			t.Errorf("Expected seq %d at position %d, got %d", i, i, inst.Seq)
		}
		if inst.OriginalToPay != nil {
			t.Errorf("Expected nil OriginalToPay, got %s", inst.OriginalToPay)
		}
	}

	target := seeded[1]
	original := target.ToPay
	target.OriginalToPay = &original
	target.ToPay = target.ToPay.Add(decimal.NewFromInt(50))
	target.Amount = decimal.NewFromInt(25)
	if err := s.UpdateInstallment(ctx, target); err != nil {
		t.Fatalf("Failed to update installment: %v", err)
	}

	fetched, err := s.GetInstallment(ctx, target.ID)
	if err != nil {
		t.Fatalf("Failed to get installment: %v", err)
	}
	if fetched.OriginalToPay == nil || !fetched.OriginalToPay.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected OriginalToPay 200, got %v", fetched.OriginalToPay)
	}
	if !fetched.ToPay.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected ToPay 250, got %s", fetched.ToPay)
	}
	if !fetched.Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Expected Amount 25, got %s", fetched.Amount)
	}
}

func TestSQLiteStore_LedgerEntries(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	loan := seedLoan(t, s)
	insts := seedInstallments(t, s, loan, 100)

	// Later timestamp written first: the trail follows append order.
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	amounts := []int64{50, 30}
	for i, amt := range amounts {
		e := &models.LedgerEntry{
			ID:            uuid.New(),
			LoanID:        loan.ID,
			InstallmentID: insts[0].ID,
			Amount:        decimal.NewFromInt(amt),
			Method:        models.MethodCash,
			Notes:         "counter",
			Timestamp:     ts.Add(-time.Duration(i) * time.Hour),
		}
		if err := s.CreateLedgerEntry(ctx, e); err != nil {
			t.Fatalf("Failed to create ledger entry: %v", err)
		}
	}

	entries, err := s.GetLedgerEntriesForLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get ledger entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	for i, amt := range amounts {
		if !entries[i].Amount.Equal(decimal.NewFromInt(amt)) {
			t.Errorf("Entry %d: expected amount %d, got %s", i, amt, entries[i].Amount)
		}
	}
}

func TestSQLiteStore_WithTxRollsBack(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	loan := seedLoan(t, s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(q Queries) error {
		locked, err := q.GetLoanForUpdate(ctx, loan.ID)
		if err != nil {
			return err
		}
		locked.Status = models.LoanStatusCancelled
		if err := q.UpdateLoan(ctx, locked); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	fetched, err := s.GetLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	if fetched.Status != models.LoanStatusRecentlyAdded {
		t.Errorf("Expected rolled back status %q, got %q", models.LoanStatusRecentlyAdded, fetched.Status)
	}
}

func TestSQLiteStore_ListedLoansExcludeDeleted(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	kept := seedLoan(t, s)
	gone := seedLoan(t, s)
	gone.Status = models.LoanStatusDeleted
	if err := s.UpdateLoan(ctx, gone); err != nil {
		t.Fatalf("Failed to update loan: %v", err)
	}

	listed, err := s.GetAllListedLoans(ctx)
	if err != nil {
		t.Fatalf("Failed to list loans: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != kept.ID {
		t.Fatalf("Expected only loan %s, got %d loans", kept.ID, len(listed))
	}

	all, err := s.GetAllLoans(ctx)
	if err != nil {
		t.Fatalf("Failed to get all loans: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 loans in total, got %d", len(all))
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"ledger.db", "file:ledger.db?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"},
		{"file:ledger.db?cache=shared", "file:ledger.db?cache=shared&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"},
	}
	for _, tc := range tests {
		if got := sqliteDSN(tc.path, 0); got != tc.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestDialectRebind(t *testing.T) {
	q := `UPDATE loans SET status = ? WHERE id = ?`
	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	want := `UPDATE loans SET status = $1 WHERE id = $2`
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestSQLiteStore_PingAndDriver(t *testing.T) {
	s := newTestSQLiteStore(t)
	if got := s.Driver(); got != "sqlite3" {
		t.Errorf("Driver() = %q, want sqlite3", got)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
