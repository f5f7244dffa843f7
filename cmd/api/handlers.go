package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/lendBook/pkg/ledger"
	"github.com/mcclellann/lendBook/pkg/models"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// parseWhen accepts either an RFC 3339 timestamp or a plain date.
func parseWhen(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		s.respondValidation(w, []fieldError{{Field: name, Message: "must be a UUID"}})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondFailure(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", nil)
		return false
	}
	return true
}

type createCustomerRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

func (s *Server) createCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.respondValidation(w, []fieldError{{Field: "name", Message: "required"}})
		return
	}
	c, err := s.ledger.CreateCustomer(r.Context(), req.Name, req.Contact)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusCreated, c)
}

func (s *Server) getCustomerHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := s.ledger.GetCustomer(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusOK, c)
}

type createLoanRequest struct {
	CustomerID      string          `json:"customer_id"`
	Principal       decimal.Decimal `json:"principal"`
	Months          int             `json:"months"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	ServiceFee      decimal.Decimal `json:"service_fee"`
	GrossReceivable decimal.Decimal `json:"gross_receivable"`
	StartDate       string          `json:"start_date"`
}

func (req createLoanRequest) Validate() (ledger.LoanTerms, []fieldError) {
	var errs []fieldError
	terms := ledger.LoanTerms{
		Principal:       req.Principal,
		Months:          req.Months,
		InterestRate:    req.InterestRate,
		ServiceFee:      req.ServiceFee,
		GrossReceivable: req.GrossReceivable,
	}

	if id, err := uuid.Parse(req.CustomerID); err != nil {
		errs = append(errs, fieldError{Field: "customer_id", Message: "must be a UUID"})
	} else {
		terms.CustomerID = id
	}
	if !req.Principal.IsPositive() {
		errs = append(errs, fieldError{Field: "principal", Message: "must be greater than 0"})
	}
	if req.Months < 1 {
		errs = append(errs, fieldError{Field: "months", Message: "must be at least 1"})
	}
	if !req.GrossReceivable.IsPositive() {
		errs = append(errs, fieldError{Field: "gross_receivable", Message: "must be greater than 0"})
	}
	if req.InterestRate.IsNegative() {
		errs = append(errs, fieldError{Field: "interest_rate", Message: "cannot be negative"})
	}
	if req.ServiceFee.IsNegative() {
		errs = append(errs, fieldError{Field: "service_fee", Message: "cannot be negative"})
	}
	if t, ok := parseWhen(req.StartDate); ok {
		terms.StartDate = t
	} else {
		errs = append(errs, fieldError{Field: "start_date", Message: "must be a date (YYYY-MM-DD)"})
	}
	return terms, errs
}

type loanWithSchedule struct {
	*models.Loan
	Installments []*models.Installment `json:"installments"`
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	terms, errs := req.Validate()
	if len(errs) > 0 {
		s.respondValidation(w, errs)
		return
	}

	loan, insts, err := s.ledger.CreateLoan(r.Context(), terms)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusCreated, loanWithSchedule{Loan: loan, Installments: insts})
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.ListLoans(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if loans == nil {
		loans = []*models.Loan{}
	}
	s.respondSuccess(w, http.StatusOK, loans)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	loan, err := s.ledger.GetLoan(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusOK, loan)
}

func (s *Server) getInstallmentsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	insts, err := s.ledger.GetInstallments(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusOK, insts)
}

func (s *Server) getLedgerHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := s.ledger.GetLedger(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	s.respondSuccess(w, http.StatusOK, entries)
}

type paymentRequest struct {
	InstallmentID string          `json:"installment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     string          `json:"timestamp"`
	Method        string          `json:"method"`
	Notes         string          `json:"notes"`
}

func (req paymentRequest) Validate(loanID uuid.UUID) (ledger.PaymentRequest, []fieldError) {
	var errs []fieldError
	out := ledger.PaymentRequest{LoanID: loanID, Amount: req.Amount, Method: req.Method, Notes: req.Notes}

	if id, err := uuid.Parse(req.InstallmentID); err != nil {
		errs = append(errs, fieldError{Field: "installment_id", Message: "must be a UUID"})
	} else {
		out.StartInstallmentID = id
	}
	if !req.Amount.IsPositive() {
		errs = append(errs, fieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if req.Timestamp != "" {
		if t, ok := parseWhen(req.Timestamp); ok {
			out.Timestamp = t
		} else {
			errs = append(errs, fieldError{Field: "timestamp", Message: "must be RFC 3339 or YYYY-MM-DD"})
		}
	}
	return out, errs
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payment, errs := req.Validate(loanID)
	if len(errs) > 0 {
		s.respondValidation(w, errs)
		return
	}

	res, err := s.ledger.ApplyPayment(r.Context(), payment)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusCreated, res)
}

type penaltyRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
	Date   string          `json:"date"`
}

func (s *Server) addPenaltyHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req penaltyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	var errs []fieldError
	if !req.Amount.IsPositive() {
		errs = append(errs, fieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if req.Reason == "" {
		errs = append(errs, fieldError{Field: "reason", Message: "required"})
	}
	var date time.Time
	if req.Date != "" {
		var ok bool
		if date, ok = parseWhen(req.Date); !ok {
			errs = append(errs, fieldError{Field: "date", Message: "must be RFC 3339 or YYYY-MM-DD"})
		}
	}
	if len(errs) > 0 {
		s.respondValidation(w, errs)
		return
	}

	res, err := s.ledger.AddPenalty(r.Context(), ledger.PenaltyRequest{
		LoanID: loanID,
		Amount: req.Amount,
		Reason: req.Reason,
		Date:   date,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusCreated, res)
}

func (s *Server) cancelLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	loan, err := s.ledger.CancelLoan(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusOK, loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.ledger.SoftDeleteLoan(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) setStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req setStatusRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	status := models.LoanStatus(req.Status)
	if !status.IsValid() {
		s.respondValidation(w, []fieldError{{Field: "status", Message: "unknown loan status"}})
		return
	}
	loan, err := s.ledger.SetStatus(r.Context(), id, status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusOK, loan)
}

func (s *Server) reconcileLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	rec, err := s.ledger.Reconcile(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusOK, rec)
}

func (s *Server) recalculateHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.RecalculateAllBalances(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSuccess(w, http.StatusOK, res)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("health check failed")
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
