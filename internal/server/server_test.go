// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pos-assistant/internal/common/errors"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/common/observability"
	"pos-assistant/internal/history"
	"pos-assistant/internal/models"
	"pos-assistant/internal/pipeline"
)

// stubPipeline returns a canned response and records the history it
// was handed.
type stubPipeline struct {
	response *pipeline.Response
	err      error

	lastUtterance string
	lastHistory   []models.Turn
}

func (s *stubPipeline) HandleMessage(ctx context.Context, tenantID, utterance string, turns []models.Turn) (*pipeline.Response, error) {
	s.lastUtterance = utterance
	s.lastHistory = turns
	return s.response, s.err
}

func newTestServer(t *testing.T, stub *stubPipeline) (*Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.NewTestLogger(t)
	hist := history.NewStore(client, time.Hour, 10, log)
	// Zero value: records are no-ops, nothing hits the global registry.
	obs := &observability.Observability{}

	return New(map[string]MessageHandler{"tenant-a": stub}, hist, obs, log), mr
}

func postChat(t *testing.T, handler http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsAnswer(t *testing.T) {
	stub := &stubPipeline{response: &pipeline.Response{
		Answer:   "✅ ¡Venta registrada!",
		Metadata: map[string]interface{}{"intent": "MUTATION"},
	}}
	srv, _ := newTestServer(t, stub)

	rec := postChat(t, srv.Routes(), ChatRequest{TenantID: "tenant-a", Message: "vendí 2 pulseras"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "✅ ¡Venta registrada!", resp.Answer)
	assert.Equal(t, "MUTATION", resp.Metadata["intent"])
	assert.Equal(t, "vendí 2 pulseras", stub.lastUtterance)
}

func TestChatPersistsExchange(t *testing.T) {
	stub := &stubPipeline{response: &pipeline.Response{Answer: "ok", Metadata: map[string]interface{}{}}}
	srv, mr := newTestServer(t, stub)

	rec := postChat(t, srv.Routes(), ChatRequest{TenantID: "tenant-a", Message: "hola"})

	require.Equal(t, http.StatusOK, rec.Code)
	turns, err := mr.List("history:tenant-a")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Contains(t, turns[0], `"user"`)
	assert.Contains(t, turns[1], `"assistant"`)
}

func TestChatForwardsHistory(t *testing.T) {
	stub := &stubPipeline{response: &pipeline.Response{Answer: "ok", Metadata: map[string]interface{}{}}}
	srv, _ := newTestServer(t, stub)
	handler := srv.Routes()

	postChat(t, handler, ChatRequest{TenantID: "tenant-a", Message: "primera"})
	postChat(t, handler, ChatRequest{TenantID: "tenant-a", Message: "segunda"})

	require.Len(t, stub.lastHistory, 2)
	assert.Equal(t, "primera", stub.lastHistory[0].Content)
}

func TestChatRejectsUnknownTenant(t *testing.T) {
	stub := &stubPipeline{response: &pipeline.Response{Answer: "ok"}}
	srv, _ := newTestServer(t, stub)

	rec := postChat(t, srv.Routes(), ChatRequest{TenantID: "tenant-z", Message: "hola"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	stub := &stubPipeline{response: &pipeline.Response{Answer: "ok"}}
	srv, _ := newTestServer(t, stub)

	rec := postChat(t, srv.Routes(), ChatRequest{TenantID: "tenant-a", Message: "   "})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRejectsNonPost(t *testing.T) {
	stub := &stubPipeline{response: &pipeline.Response{Answer: "ok"}}
	srv, _ := newTestServer(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChatFatalErrorStillAnswers(t *testing.T) {
	stub := &stubPipeline{
		response: &pipeline.Response{
			Answer:   "Ocurrió un error procesando tu mensaje.",
			Metadata: map[string]interface{}{"error_code": string(apperrors.ErrCodeDataAccess)},
		},
		err: apperrors.NewDataAccessError(assert.AnError),
	}
	srv, mr := newTestServer(t, stub)

	rec := postChat(t, srv.Routes(), ChatRequest{TenantID: "tenant-a", Message: "hola"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "Ocurrió un error")
	// Failed requests leave no half-written history.
	assert.False(t, mr.Exists("history:tenant-a"))
}

func TestHealthz(t *testing.T) {
	stub := &stubPipeline{response: &pipeline.Response{Answer: "ok"}}
	srv, _ := newTestServer(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
