package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/mcclellann/lendBook/pkg/config"
	"github.com/mcclellann/lendBook/pkg/ledger"
	"github.com/mcclellann/lendBook/pkg/store"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage
	log     *logrus.Logger
}

func NewServer(s store.Storage, log *logrus.Logger) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, log),
		storage: s,
		log:     log,
	}
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.recoveryMiddleware, loggingMiddleware(s.log))

	router.HandleFunc("/health", s.healthHandler).Methods("GET")

	router.HandleFunc("/customers", s.createCustomerHandler).Methods("POST")
	router.HandleFunc("/customers/{id}", s.getCustomerHandler).Methods("GET")

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/installments", s.getInstallmentsHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/ledger", s.getLedgerHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/penalties", s.addPenaltyHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/cancel", s.cancelLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/status", s.setStatusHandler).Methods("PUT")
	router.HandleFunc("/loans/{id}/reconcile", s.reconcileLoanHandler).Methods("POST")

	router.HandleFunc("/maintenance/recalculate", s.recalculateHandler).Methods("POST")
	return router
}

// startRecalcJob schedules the bulk balance recalculation. It returns nil
// when spec is empty.
func (s *Server) startRecalcJob(spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		s.log.Info("running scheduled balance recalculation")
		if _, err := s.ledger.RecalculateAllBalances(context.Background()); err != nil {
			s.log.WithError(err).Error("scheduled balance recalculation failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule recalculation: %w", err)
	}
	c.Start()
	return c, nil
}

// serve runs srv until it fails or a signal arrives on quit. Either way it
// stops the recalculation job and drains in-flight requests before returning.
func serve(srv *http.Server, job *cron.Cron, quit <-chan os.Signal, log *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down server")
	}

	if job != nil {
		<-job.Stop().Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	log.Info("Server stopped")
	return serveErr
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	db, err := store.Open(context.Background(), cfg.DatabaseDriver, cfg.DatabaseURL, store.Options{
		BusyTimeout:  cfg.BusyTimeout(),
		MaxOpenConns: cfg.DBMaxOpenConns,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer db.Close()
	logger.WithField("driver", db.Driver()).Info("store opened")

	server := NewServer(db, logger)
	job, err := server.startRecalcJob(cfg.RecalcSchedule)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.routes(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return serve(srv, job, quit, logger)
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if err := run(); err != nil {
		logrus.WithError(err).Error("api exited")
		os.Exit(1)
	}
}
