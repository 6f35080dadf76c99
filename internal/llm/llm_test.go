package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"adva-reconciliation-engine/internal/apperrors"
	"adva-reconciliation-engine/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*Gateway, func()) {
	srv := httptest.NewServer(handler)
	g := NewGateway(srv.URL, "", ratelimit.New(1000, time.Minute), nil)
	g.sleep = func(time.Duration) {}
	return g, srv.Close
}

func jsonResponse(w http.ResponseWriter, status int, body responseBody) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestAnalyzeDocumentSuccess(t *testing.T) {
	g, closeFn := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, responseBody{Candidates: []candidate{
			{Content: candidateContent{Parts: []candidatePart{{Text: "extracted text"}}}},
		}})
	})
	defer closeFn()

	text, err := g.AnalyzeDocument(context.Background(), []byte("pdf-bytes"), "application/pdf", "extract", 2)
	require.NoError(t, err)
	assert.Equal(t, "extracted text", text)
}

func TestAnalyzeDocumentQuotaExceededFailsFast(t *testing.T) {
	var calls int32
	g, closeFn := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"daily quota exceeded for project"}`))
	})
	defer closeFn()

	_, err := g.AnalyzeDocument(context.Background(), []byte("x"), "application/pdf", "p", 5)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "PIPELINE_QUOTA_EXCEEDED", appErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "quota errors must not retry")
}

func TestAnalyzeDocumentRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	g, closeFn := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		jsonResponse(w, http.StatusOK, responseBody{Candidates: []candidate{
			{Content: candidateContent{Parts: []candidatePart{{Text: "ok"}}}},
		}})
	})
	defer closeFn()

	text, err := g.AnalyzeDocument(context.Background(), []byte("x"), "application/pdf", "p", 5)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAnalyzeDocumentPermanentDoesNotRetry(t *testing.T) {
	var calls int32
	g, closeFn := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid argument"}`))
	})
	defer closeFn()

	_, err := g.AnalyzeDocument(context.Background(), []byte("x"), "application/pdf", "p", 5)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "PIPELINE_PERMANENT_EXTRACT", appErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAnalyzeDocumentMakesAtLeastOneAttemptWithZeroRetries(t *testing.T) {
	var calls int32
	g, closeFn := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer closeFn()

	_, err := g.AnalyzeDocument(context.Background(), []byte("x"), "application/pdf", "p", 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAnalyzeDocumentEmptyCandidatesIsPermanent(t *testing.T) {
	g, closeFn := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, responseBody{Candidates: nil})
	})
	defer closeFn()

	_, err := g.AnalyzeDocument(context.Background(), []byte("x"), "application/pdf", "p", 2)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "PIPELINE_PERMANENT_EXTRACT", appErr.Code)
}

