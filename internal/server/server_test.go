package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/task-forge/internal/auth"
	"github.com/yourusername/task-forge/internal/config"
	"github.com/yourusername/task-forge/internal/tasks"
)

type taskBody struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	return newTestServerWithConfig(t, &config.Config{CORSAllowedOrigins: "http://localhost:5173"})
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	credentials, err := auth.NewCredentialStore(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewCredentialStore returned error: %v", err)
	}
	manager := auth.NewManager(credentials, auth.NewTokenIssuer(), auth.NewMemoryLimiter(auth.DefaultLimiterPolicy), logger)

	return New(Options{
		Config: cfg,
		Logger: logger,
		Auth:   manager,
		Tasks:  tasks.NewStore(),
	})
}

func request(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", rec.Body.String(), err)
	}
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": password}
	if rec := request(t, h, http.MethodPost, "/register", "", creds); rec.Code != http.StatusCreated {
		t.Fatalf("register: unexpected status %d body=%s", rec.Code, rec.Body.String())
	}
	rec := request(t, h, http.MethodPost, "/login", "", creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: unexpected status %d body=%s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Token string `json:"token"`
	}
	decode(t, rec, &payload)
	if payload.Token == "" {
		t.Fatal("login returned empty token")
	}
	return payload.Token
}

func TestTaskLifecycle(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "testuser", "password")

	rec := request(t, h, http.MethodPost, "/tasks", token, map[string]string{"description": "New Task"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: unexpected status %d body=%s", rec.Code, rec.Body.String())
	}
	var created taskBody
	decode(t, rec, &created)
	if created.Description != "New Task" || created.Completed {
		t.Fatalf("unexpected created task: %+v", created)
	}

	rec = request(t, h, http.MethodGet, "/tasks", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: unexpected status %d", rec.Code)
	}
	var list []taskBody
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	path := "/tasks/" + strconv.FormatInt(created.ID, 10)
	rec = request(t, h, http.MethodPut, path, token, map[string]any{"description": "Updated Task", "completed": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: unexpected status %d body=%s", rec.Code, rec.Body.String())
	}
	var updated taskBody
	decode(t, rec, &updated)
	if updated.Description != "Updated Task" || !updated.Completed {
		t.Fatalf("unexpected updated task: %+v", updated)
	}

	rec = request(t, h, http.MethodDelete, path, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: unexpected status %d", rec.Code)
	}

	rec = request(t, h, http.MethodGet, "/tasks", token, nil)
	list = nil
	decode(t, rec, &list)
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty array after delete, got %s", rec.Body.String())
	}

	rec = request(t, h, http.MethodDelete, path, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("repeated delete: unexpected status %d", rec.Code)
	}
}

func TestBearerPrefixAccepted(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "testuser", "password")

	rec := request(t, h, http.MethodGet, "/tasks", "Bearer "+token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestTasksRequireToken(t *testing.T) {
	h := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/tasks"},
		{http.MethodGet, "/tasks"},
		{http.MethodPut, "/tasks/1"},
		{http.MethodDelete, "/tasks/1"},
	} {
		for _, token := range []string{"", "invalid-token"} {
			rec := request(t, h, tc.method, tc.path, token, map[string]string{"description": "x"})
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("%s %s token=%q: unexpected status %d", tc.method, tc.path, token, rec.Code)
			}
			var payload map[string]string
			decode(t, rec, &payload)
			if payload["error"] == "" {
				t.Fatalf("expected error message, got %#v", payload)
			}
		}
	}
}

func TestTasksAreOwnerScoped(t *testing.T) {
	h := newTestServer(t)
	alice := login(t, h, "alice", "password")
	bob := login(t, h, "bob", "password")

	rec := request(t, h, http.MethodPost, "/tasks", alice, map[string]string{"description": "alice task"})
	var task taskBody
	decode(t, rec, &task)
	request(t, h, http.MethodPost, "/tasks", bob, map[string]string{"description": "bob task"})

	var list []taskBody
	decode(t, request(t, h, http.MethodGet, "/tasks", alice, nil), &list)
	if len(list) != 1 || list[0].Description != "alice task" {
		t.Fatalf("alice sees unexpected tasks: %+v", list)
	}

	path := "/tasks/" + strconv.FormatInt(task.ID, 10)
	foreign := request(t, h, http.MethodPut, path, bob, map[string]bool{"completed": true})
	missing := request(t, h, http.MethodPut, "/tasks/424242", bob, map[string]bool{"completed": true})
	if foreign.Code != http.StatusNotFound || foreign.Body.String() != missing.Body.String() {
		t.Fatalf("foreign update leaked: %d %s vs %s", foreign.Code, foreign.Body.String(), missing.Body.String())
	}
	if rec := request(t, h, http.MethodDelete, path, bob, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: unexpected status %d", rec.Code)
	}
	if rec := request(t, h, http.MethodGet, path, alice, nil); rec.Code != http.StatusOK {
		t.Fatalf("owner get: unexpected status %d", rec.Code)
	}
}

func TestRegisterConflictAndBadLogin(t *testing.T) {
	h := newTestServer(t)
	login(t, h, "testuser", "password")

	creds := map[string]string{"username": "testuser", "password": "password"}
	if rec := request(t, h, http.MethodPost, "/register", "", creds); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: unexpected status %d", rec.Code)
	}

	bad := map[string]string{"username": "testuser", "password": "wrong"}
	if rec := request(t, h, http.MethodPost, "/login", "", bad); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: unexpected status %d", rec.Code)
	}
}

func loginFrom(h http.Handler, remoteAddr, forwardedFor, username, password string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestForgedForwardedForDoesNotSteerLockout(t *testing.T) {
	h := newTestServer(t)
	login(t, h, "victim", "password")

	const attacker = "203.0.113.9:4321"
	for i := 0; i < auth.DefaultLimiterPolicy.MaxAttempts; i++ {
		rec := loginFrom(h, attacker, "198.51.100."+strconv.Itoa(i+1), "victim", "wrong")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: unexpected status %d", i+1, rec.Code)
		}
	}

	// 送信元アドレスで数えるので、ヘッダーを変えても攻撃者自身がロックされる
	if rec := loginFrom(h, attacker, "198.51.100.200", "victim", "password"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("attacker should be locked out, got %d", rec.Code)
	}
	// 偽装された X-Forwarded-For の持ち主はロックされない
	if rec := loginFrom(h, "198.51.100.1:5555", "", "victim", "password"); rec.Code != http.StatusOK {
		t.Fatalf("victim login: unexpected status %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestTrustedProxyForwardsClientIP(t *testing.T) {
	h := newTestServerWithConfig(t, &config.Config{TrustedProxies: "10.0.0.0/8"})
	login(t, h, "testuser", "password")

	const proxy = "10.1.2.3:8080"
	for i := 0; i < auth.DefaultLimiterPolicy.MaxAttempts; i++ {
		loginFrom(h, proxy, "198.51.100.7", "testuser", "wrong")
	}

	if rec := loginFrom(h, proxy, "198.51.100.7", "testuser", "password"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("forwarded client should be locked out, got %d", rec.Code)
	}
	if rec := loginFrom(h, proxy, "198.51.100.8", "testuser", "password"); rec.Code != http.StatusOK {
		t.Fatalf("other client behind the proxy: unexpected status %d", rec.Code)
	}
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	h := newTestServer(t)

	rec := request(t, h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: unexpected status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}

	rec = request(t, h, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: unexpected status %d", rec.Code)
	}

	rec = request(t, h, http.MethodPatch, "/login", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: unexpected status %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected Access-Control-Allow-Origin: %q", got)
	}
}

func TestNewHTTPServerTimeouts(t *testing.T) {
	cfg := &config.Config{Port: "9000", ReadTimeoutSeconds: 3, WriteTimeoutSeconds: 4}
	srv := NewHTTPServer(cfg, http.NotFoundHandler())
	if srv.Addr != ":9000" || srv.ReadTimeout.Seconds() != 3 || srv.WriteTimeout.Seconds() != 4 {
		t.Fatalf("unexpected server: addr=%s read=%s write=%s", srv.Addr, srv.ReadTimeout, srv.WriteTimeout)
	}
}
