package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daeguwebtoon/chatcore/destinations"
	"github.com/daeguwebtoon/chatcore/engine"
	"github.com/daeguwebtoon/chatcore/events"
	"github.com/daeguwebtoon/chatcore/providers"
	"github.com/daeguwebtoon/chatcore/sessionstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	eng := engine.New(
		sessionstore.NewMemoryStore(),
		providers.NewScriptProvider("오늘 뭐 하고 싶어?"),
	)
	return NewServer(eng, opts...)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestChatEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodPost, "/api/chat", gin.H{
		"message":  "안녕! 나 대구 놀러왔어",
		"userName": "철수",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "대구-대구", body["character"])
	assert.Equal(t, "preference", body["stage"])
	assert.NotEmpty(t, body["response"])
	assert.NotEmpty(t, body["sessionId"], "server assigns a session id when absent")
	assert.Equal(t, false, body["terminated"])
}

func TestChatEndpoint_MissingMessage(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodPost, "/api/chat", gin.H{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])

	w, _ = doJSON(t, s, http.MethodPost, "/api/chat", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatEndpoint_SessionContinuity(t *testing.T) {
	s := newTestServer(t)

	_, body := doJSON(t, s, http.MethodPost, "/api/chat", gin.H{"message": "안녕!"})
	sid := body["sessionId"].(string)

	_, body = doJSON(t, s, http.MethodPost, "/api/chat", gin.H{
		"message":   "오늘 심심하다",
		"sessionId": sid,
	})
	assert.Equal(t, sid, body["sessionId"])

	w, body := doJSON(t, s, http.MethodGet, "/api/chat/"+sid+"/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := body["session"].(map[string]any)
	assert.Equal(t, true, session["exists"])
	assert.Equal(t, float64(4), session["message_count"])
}

func TestChatEndpoint_ProfanityDeniedResponse(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodPost, "/api/chat", gin.H{"message": "꺼져"})
	require.Equal(t, http.StatusOK, w.Code, "policy violations are results, not protocol errors")
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "정책 위반으로 대화를 종료합니다.", body["response"])
	assert.Equal(t, true, body["terminated"])
}

func TestNewChatEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodPost, "/api/chat/new", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "greeting", body["stage"])
	assert.NotEmpty(t, body["sessionId"])
	assert.Contains(t, body["message"], "대구-대구")
}

func TestResetEndpoint(t *testing.T) {
	s := newTestServer(t)

	_, body := doJSON(t, s, http.MethodPost, "/api/chat", gin.H{"message": "안녕!"})
	sid := body["sessionId"].(string)

	w, body := doJSON(t, s, http.MethodDelete, "/api/chat/"+sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	_, body = doJSON(t, s, http.MethodGet, "/api/chat/"+sid+"/info", nil)
	session := body["session"].(map[string]any)
	assert.Equal(t, false, session["exists"])
}

func TestSpotsEndpoints(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodGet, "/api/spots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	spots := body["spots"].(map[string]any)
	assert.Len(t, spots, 3)

	w, body = doJSON(t, s, http.MethodGet, "/api/spots/"+destinations.Suseongmot, nil)
	require.Equal(t, http.StatusOK, w.Code)
	spot := body["spot"].(map[string]any)
	assert.Equal(t, destinations.Suseongmot, spot["id"])
	assert.Equal(t, "수성못", spot["name"])

	w, _ = doJSON(t, s, http.MethodGet, "/api/spots/gyeongju", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArriveEndpoint(t *testing.T) {
	s := newTestServer(t)

	_, body := doJSON(t, s, http.MethodPost, "/api/chat", gin.H{"message": "안녕!"})
	sid := body["sessionId"].(string)

	w, body := doJSON(t, s, http.MethodPost, "/api/spots/"+destinations.Dongseongro+"/arrive", gin.H{
		"sessionId": sid,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["arrived"])
	assert.Equal(t, "arrived", body["stage"])
	assert.Contains(t, body["arrivalIntro"], "동성로")
	assert.NotEmpty(t, body["aiResponse"])

	// Missing session id.
	w, _ = doJSON(t, s, http.MethodPost, "/api/spots/"+destinations.Dongseongro+"/arrive", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown spot.
	w, _ = doJSON(t, s, http.MethodPost, "/api/spots/busan/arrive", gin.H{"sessionId": sid})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVisitEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodPost, "/api/spots/"+destinations.Dalseong+"/visit", gin.H{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "webtoon_transition", body["nextAction"])
	assert.Contains(t, body["message"], "달성공원")
	assert.NotEmpty(t, body["aiResponse"])
}

func TestPolicyEndpoints(t *testing.T) {
	dir := t.TempDir()
	audit, err := events.NewAuditStore(dir)
	require.NoError(t, err)
	defer audit.Close()

	s := newTestServer(t, WithAuditStore(audit))
	s.engine.Bus().Subscribe(events.EventSafetyTriggered, audit.Listener())

	w, body := doJSON(t, s, http.MethodGet, "/api/policy", nil)
	require.Equal(t, http.StatusOK, w.Code)
	policy := body["policy"].(map[string]any)
	lists := policy["lists"].(map[string]any)
	assert.NotEmpty(t, lists["profanity"])
	assert.NotEmpty(t, lists["criticalTerms"])

	// A violation lands in the audit log before the response is written.
	doJSON(t, s, http.MethodPost, "/api/chat", gin.H{"message": "주식 얘기하자"})

	w, body = doJSON(t, s, http.MethodGet, "/api/policy/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := body["logs"].([]any)
	require.NotEmpty(t, logs)
	record := logs[len(logs)-1].(map[string]any)
	assert.Equal(t, string(events.EventSafetyTriggered), record["type"])
}

func TestPolicyLogsWithoutAuditStore(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodGet, "/api/policy/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["logs"])
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	termination := body["termination"].(map[string]any)
	assert.Equal(t, false, termination["active"])
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, WithRateLimit(1, 2))

	var limited bool
	for i := 0; i < 5; i++ {
		w, _ := doJSON(t, s, http.MethodPost, "/api/chat", gin.H{
			"message": fmt.Sprintf("이야기 %d번째 계속하자", i),
		})
		if w.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited, "burst beyond the bucket must be rejected")
}
