package main

import (
	"encoding/json"
	"net/http"

	"github.com/mcclellann/lendBook/pkg/models"
)

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) respondSuccess(w http.ResponseWriter, status int, data any) {
	s.respondJSON(w, status, apiResponse{Success: true, Data: data})
}

func (s *Server) respondFailure(w http.ResponseWriter, status int, code, message string, details any) {
	s.respondJSON(w, status, apiResponse{
		Success: false,
		Error:   &apiError{Code: code, Message: message, Details: details},
	})
}

func (s *Server) respondValidation(w http.ResponseWriter, fields []fieldError) {
	s.respondFailure(w, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", fields)
}

// respondError maps an engine error onto a status code by its kind.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch models.KindOf(err) {
	case models.KindNotFound:
		s.respondFailure(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case models.KindInvalidState:
		s.respondFailure(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	case models.KindValidation:
		s.respondFailure(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		s.respondFailure(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
