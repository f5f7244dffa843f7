package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcclellann/lendBook/pkg/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondJSON_LogsEncodeFailureOnServerLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	server := NewServer(testutil.NewSQLiteStore(t), logger)

	rr := httptest.NewRecorder()
	server.respondJSON(rr, http.StatusOK, map[string]any{"bad": make(chan int)})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "failed to encode response", hook.LastEntry().Message)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	server := NewServer(testutil.NewSQLiteStore(t), logger)
	handler := server.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/loans", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "panic recovered", hook.LastEntry().Message)
}
