// Package testutil holds fixtures shared by the ledger and API tests.
package testutil

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendBook/pkg/models"
	"github.com/mcclellann/lendBook/pkg/store"
	"github.com/sirupsen/logrus"
)

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// NewSQLiteStore opens a fresh SQLite store in a per-test directory and closes
// it when the test ends.
func NewSQLiteStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), store.Options{
		Logger: DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedCustomer stores a customer directly through the store.
func SeedCustomer(t *testing.T, s store.Queries, name string) *models.Customer {
	t.Helper()
	c := &models.Customer{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	if err := s.CreateCustomer(context.Background(), c); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}
