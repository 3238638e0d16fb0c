package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/elishakaranja/Mindset-coach/internal/ai"
	"github.com/elishakaranja/Mindset-coach/internal/auth"
	"github.com/elishakaranja/Mindset-coach/internal/chat"
	"github.com/elishakaranja/Mindset-coach/internal/db"
	"github.com/elishakaranja/Mindset-coach/internal/httpapi/handlers"
	"github.com/elishakaranja/Mindset-coach/internal/persona"
	"github.com/elishakaranja/Mindset-coach/internal/store/redisstore"
	"github.com/elishakaranja/Mindset-coach/internal/users"
)

type coachProvider struct {
	fail bool
}

func (p *coachProvider) Name() string { return "fake" }

func (p *coachProvider) Complete(_ context.Context, _ string, transcript []ai.Turn, prompt string) (string, error) {
	if p.fail {
		return "", errors.New("quota exceeded")
	}
	return "you said " + prompt, nil
}

func (p *coachProvider) Stream(ctx context.Context, instruction string, transcript []ai.Turn, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range []string{"you ", "said ", prompt} {
			if !yield(f, nil) {
				return
			}
		}
	}
}

type testServer struct {
	router   http.Handler
	provider *coachProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, db.Migrate(gdb))

	personas := persona.MustBuiltin()
	tokens, err := auth.NewTokens("test-secret", "HS256", 30*time.Minute)
	require.NoError(t, err)
	userSvc := users.NewService(users.NewRepo(gdb), auth.NewHasher(bcrypt.MinCost), tokens, personas)

	prov := &coachProvider{}
	chatSvc := chat.NewService(chat.NewRepo(gdb), personas, prov, nil)

	mr := miniredis.RunT(t)
	store := redisstore.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })
	throttle := redisstore.NewLoginThrottle(store, 3, time.Minute)

	h := handlers.NewHandler(userSvc, chatSvc, personas, throttle, nil)
	return &testServer{router: NewRouter(h, nil), provider: prov}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, email, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/users/", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.login(t, email, password)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decode(t, w, &tok)
	require.Equal(t, "bearer", tok.TokenType)
	return tok.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type chatResp struct {
	ConversationID uint64    `json:"conversation_id"`
	Response       string    `json:"response"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

type summary struct {
	ID           uint64 `json:"id"`
	MessageCount int64  `json:"message_count"`
}

func TestScenario_RegisterLoginAndChat(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@x.com", "pw123456")

	w := s.do(t, http.MethodPost, "/chat", token, gin.H{"message": "hi", "conversation_id": nil})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first chatResp
	decode(t, w, &first)
	assert.NotZero(t, first.ConversationID)
	assert.Equal(t, "you said hi", first.Response)
	assert.Equal(t, first.Response, first.Message)
	assert.False(t, first.CreatedAt.IsZero())

	w = s.do(t, http.MethodPost, "/chat", token, gin.H{"message": "again", "conversation_id": first.ConversationID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var second chatResp
	decode(t, w, &second)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	w = s.do(t, http.MethodGet, "/chat/conversations", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var convs []summary
	decode(t, w, &convs)
	require.Len(t, convs, 1)
	assert.EqualValues(t, 4, convs[0].MessageCount)

	w = s.do(t, http.MethodGet, "/chat/conversations/"+itoa(first.ConversationID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var conv struct {
		ID       uint64 `json:"id"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	decode(t, w, &conv)
	require.Len(t, conv.Messages, 4)
	assert.Equal(t, "user", conv.Messages[0].Role)
	assert.Equal(t, "assistant", conv.Messages[1].Role)
	assert.Equal(t, "you said again", conv.Messages[3].Content)

	w = s.do(t, http.MethodGet, "/chat/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []map[string]any
	decode(t, w, &history)
	assert.Len(t, history, 4)
}

func TestScenario_UnknownPersonalityWritesNothing(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@x.com", "pw123456")

	w := s.do(t, http.MethodPost, "/chat", token, gin.H{"message": "hi", "personality_id": "unknown"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/chat/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(t, http.MethodGet, "/chat/conversations", token, nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestModelFailureIs500AndKeepsUserTurn(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@x.com", "pw123456")
	s.provider.fail = true

	w := s.do(t, http.MethodPost, "/chat", token, gin.H{"message": "hi"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "quota exceeded")

	w = s.do(t, http.MethodGet, "/chat/history", token, nil)
	var history []map[string]any
	decode(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "user", history[0]["role"])
}

func TestRegister_DuplicateEmailIsConflict(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "pw123456")

	w := s.do(t, http.MethodPost, "/users/", "", gin.H{"email": "A@x.com", "password": "other"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/chat/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = s.do(t, http.MethodGet, "/users/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.login(t, "nobody@x.com", "pw")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOwnershipIsolation(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice@x.com", "pw123456")
	bob := s.register(t, "bob@x.com", "pw123456")

	w := s.do(t, http.MethodPost, "/chat", alice, gin.H{"message": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	var r chatResp
	decode(t, w, &r)
	path := "/chat/conversations/" + itoa(r.ConversationID)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodPost, "/chat", bob, gin.H{"message": "x", "conversation_id": r.ConversationID}).Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, alice, nil).Code)
}

func TestPersonalities(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@x.com", "pw123456")

	w := s.do(t, http.MethodGet, "/personalities", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "instruction")
	var list []persona.Info
	decode(t, w, &list)
	assert.NotEmpty(t, list)

	w = s.do(t, http.MethodPut, "/personalities/me", token, gin.H{"personality": "marcus"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"selected_personality":"marcus"`)

	w = s.do(t, http.MethodGet, "/users/me", token, nil)
	assert.Contains(t, w.Body.String(), `"selected_personality":"marcus"`)

	w = s.do(t, http.MethodPut, "/personalities/me", token, gin.H{"personality": "yoda"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStream_SendsChunksThenDone(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@x.com", "pw123456")

	w := s.do(t, http.MethodPost, "/chat/stream", token, gin.H{"message": "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event:start")
	assert.Equal(t, 3, strings.Count(body, "event:chunk"))
	assert.Contains(t, body, "event:done")
	assert.Less(t, strings.Index(body, "event:chunk"), strings.Index(body, "event:done"))

	w = s.do(t, http.MethodGet, "/chat/history", token, nil)
	var history []map[string]any
	decode(t, w, &history)
	require.Len(t, history, 2)
	assert.Equal(t, "you said hello", history[1]["content"])
}

func TestLoginThrottle(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "pw123456")

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, s.login(t, "a@x.com", "wrong").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, s.login(t, "a@x.com", "pw123456").Code)
}

func TestAsyncRoutesAbsentWithoutBroker(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@x.com", "pw123456")

	w := s.do(t, http.MethodPost, "/chat/async", token, gin.H{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }
