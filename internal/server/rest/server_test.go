package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/pilosopo/internal/common"
	"github.com/dmitrijs2005/pilosopo/internal/logging"
	"github.com/dmitrijs2005/pilosopo/internal/server/backends"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
	"github.com/dmitrijs2005/pilosopo/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubUsers struct {
	register func(services.RegisterRequest) (*services.RegisterResult, error)
	login    func(services.LoginRequest) (*services.LoginResult, error)
	views    []models.ProfileView
	viewsErr error
	filtered string
	update   func(string, services.UpdateRequest) (*services.UpdateResult, error)
	del      func(string) (*services.DeleteResult, error)
}

func (s *stubUsers) Register(_ context.Context, req services.RegisterRequest) (*services.RegisterResult, error) {
	return s.register(req)
}

func (s *stubUsers) Login(_ context.Context, req services.LoginRequest) (*services.LoginResult, error) {
	return s.login(req)
}

func (s *stubUsers) ListProfiles(context.Context) ([]models.ProfileView, error) {
	return s.views, s.viewsErr
}

func (s *stubUsers) GetProfile(_ context.Context, id string) (*models.ProfileView, error) {
	for _, v := range s.views {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, common.NotFound("User not found")
}

func (s *stubUsers) FilterProfiles(_ context.Context, provider string) ([]models.ProfileView, error) {
	s.filtered = provider
	if provider == "" {
		return nil, common.Validation("provider query parameter is required")
	}
	return s.views, nil
}

func (s *stubUsers) SortProfilesByUsernameDesc(context.Context) ([]models.ProfileView, error) {
	return s.views, s.viewsErr
}

func (s *stubUsers) UpdateProfile(_ context.Context, id string, req services.UpdateRequest) (*services.UpdateResult, error) {
	return s.update(id, req)
}

func (s *stubUsers) DeleteProfile(_ context.Context, id string) (*services.DeleteResult, error) {
	return s.del(id)
}

type stubHistory struct {
	appended services.AppendRequest
	entries  []*models.HistoryEntry
	err      error
	buffered int
}

func (s *stubHistory) Append(_ context.Context, req services.AppendRequest) (*models.HistoryEntry, error) {
	s.appended = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.HistoryEntry{ID: "local-1-x", OwnerID: req.OwnerID, Term: req.Term, ResultText: req.ResultText, Buffered: true}, nil
}

func (s *stubHistory) List(_ context.Context, ownerID string) ([]*models.HistoryEntry, error) {
	if ownerID == "" {
		return []*models.HistoryEntry{}, nil
	}
	return s.entries, s.err
}

func (s *stubHistory) Buffered() int { return s.buffered }

type stubStatus struct {
	a     backends.Availability
	state string
}

func (s stubStatus) Availability() backends.Availability { return s.a }
func (s stubStatus) RecordStoreState() string             { return s.state }

func newTestServer(u *stubUsers, h *stubHistory) *Server {
	if u == nil {
		u = &stubUsers{}
	}
	if h == nil {
		h = &stubHistory{}
	}
	s := NewServer(Options{Environment: "test", WebKeyPresent: true, CORSOrigins: []string{"*"}}, u, h,
		stubStatus{a: backends.Availability{Identity: true, Documents: true}, state: "disconnected"}, logging.NewNop())
	s.now = func() time.Time { return time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestRegister(t *testing.T) {
	u := &stubUsers{register: func(req services.RegisterRequest) (*services.RegisterResult, error) {
		assert.Equal(t, "alice", req.Username)
		assert.Equal(t, "Secret123", req.ConfirmPassword)
		return &services.RegisterResult{Message: "User created", UID: "fb-1", Username: "alice"}, nil
	}}
	rec, body := do(t, newTestServer(u, nil), http.MethodPost, "/users",
		map[string]string{"username": "alice", "password": "Secret123", "confirmPassword": "Secret123"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "fb-1", body["uid"])
	assert.NotContains(t, body, "serverFallback")
}

func TestRegister_DegradedFields(t *testing.T) {
	u := &stubUsers{register: func(services.RegisterRequest) (*services.RegisterResult, error) {
		return &services.RegisterResult{Message: "m", UID: "fb-1", Username: "a", StoreError: "write failed", ServerFallback: true}, nil
	}}
	rec, body := do(t, newTestServer(u, nil), http.MethodPost, "/users", map[string]string{"username": "a"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "write failed", body["firestoreError"])
	assert.Equal(t, true, body["serverFallback"])
}

func TestRegister_BadJSON(t *testing.T) {
	s := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", common.Validation("Passwords do not match"), http.StatusBadRequest, "Passwords do not match"},
		{"credentials", common.InvalidCredentials("Invalid credentials"), http.StatusUnauthorized, "Invalid credentials"},
		{"not found", common.NotFound("User not found"), http.StatusNotFound, "User not found"},
		{"unavailable", common.Unavailable("No persistence"), http.StatusServiceUnavailable, "No persistence"},
		{"backend", common.Backend("Failed to login", errors.New("boom")), http.StatusInternalServerError, "Failed to login"},
		{"backend wrapping unavailable", common.Backend("Failed", common.Unavailable("x")), http.StatusInternalServerError, "Failed"},
		{"untyped", errors.New("raw"), http.StatusInternalServerError, "raw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &stubUsers{login: func(services.LoginRequest) (*services.LoginResult, error) { return nil, tt.err }}
			rec, body := do(t, newTestServer(u, nil), http.MethodPost, "/users/login", map[string]string{"username": "a", "password": "b"})
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestPartialErrorDetails(t *testing.T) {
	u := &stubUsers{del: func(id string) (*services.DeleteResult, error) {
		return nil, &services.PartialError{
			Err:     common.Backend("Failed to delete user", errors.New("boom")),
			Details: map[string]any{"id": id, "providerDeleted": true},
		}
	}}
	rec, body := do(t, newTestServer(u, nil), http.MethodDelete, "/users/fb-1", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to delete user", body["error"])
	assert.Equal(t, true, body["providerDeleted"])
	assert.Equal(t, "fb-1", body["id"])
}

func TestLogin(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	u := &stubUsers{login: func(req services.LoginRequest) (*services.LoginResult, error) {
		return &services.LoginResult{Message: "Login successful", UID: "fb-1", Username: req.Username, Token: "tok", ExpiresAt: &exp}, nil
	}}
	rec, body := do(t, newTestServer(u, nil), http.MethodPost, "/users/login", map[string]string{"username": "alice", "password": "x"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", body["token"])
	assert.Equal(t, "2030-01-01T00:00:00Z", body["expiresAt"])
	assert.NotContains(t, body, "serverFallback")
}

func TestProfileRoutes(t *testing.T) {
	u := &stubUsers{views: []models.ProfileView{{ID: "u1", Username: "zoe", Provider: models.ProviderLocal}}}
	s := newTestServer(u, nil)

	rec, _ := do(t, s, http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list []models.ProfileView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec, body := do(t, s, http.MethodGet, "/users/u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zoe", body["username"])

	rec, _ = do(t, s, http.MethodGet, "/users/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/users/filter?provider=local", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local", u.filtered)

	rec, _ = do(t, s, http.MethodGet, "/users/filter", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/users/sort/desc", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateUser(t *testing.T) {
	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	u := &stubUsers{update: func(id string, req services.UpdateRequest) (*services.UpdateResult, error) {
		assert.Equal(t, "u1", id)
		assert.Equal(t, "dark", req.Settings["theme"])
		return &services.UpdateResult{ID: id, Username: req.Username, Settings: req.Settings, UpdatedAt: at}, nil
	}}
	rec, body := do(t, newTestServer(u, nil), http.MethodPut, "/users/u1",
		map[string]any{"username": "x", "settings": map[string]any{"theme": "dark"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User updated successfully", body["message"])
	assert.Equal(t, "x", body["username"])
	assert.NotContains(t, body, "profileDescription")
}

func TestDeleteUser(t *testing.T) {
	u := &stubUsers{del: func(id string) (*services.DeleteResult, error) { return &services.DeleteResult{ID: id}, nil }}
	rec, body := do(t, newTestServer(u, nil), http.MethodDelete, "/users/u1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted successfully", body["message"])
}

func TestHistoryRoutes(t *testing.T) {
	h := &stubHistory{entries: []*models.HistoryEntry{{ID: "h1", OwnerID: "u1", Term: "foo"}}}
	s := newTestServer(nil, h)

	rec, body := do(t, s, http.MethodPost, "/api/history",
		map[string]string{"userId": "u1", "word": "foo", "pilosopoAnswer": "bar", "realMeaning": "baz"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["buffered"])
	assert.Equal(t, services.AppendRequest{OwnerID: "u1", Term: "foo", ResultText: "bar", SecondaryText: "baz"}, h.appended)

	rec, _ = do(t, s, http.MethodGet, "/api/history?userId=u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list []models.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "foo", list[0].Term)

	rec, _ = do(t, s, http.MethodGet, "/api/history", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHistoryAppend_Error(t *testing.T) {
	h := &stubHistory{err: common.Validation("userId, word and pilosopoAnswer are required")}
	rec, _ := do(t, newTestServer(nil, h), http.MethodPost, "/api/history", map[string]string{"word": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h := &stubHistory{buffered: 3}
	rec, body := do(t, newTestServer(nil, h), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["environment"])
	assert.Equal(t, true, body["firebaseApiKeyPresent"])
	assert.Equal(t, true, body["serviceAccountLoaded"])
	assert.Equal(t, "disconnected", body["recordStoreState"])
	assert.Equal(t, true, body["documentStoreReady"])
	assert.Equal(t, float64(3), body["bufferedHistory"])
	assert.Equal(t, "2025-05-01T10:00:00.000Z", body["timestamp"])
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	rec, _ = do(t, s, http.MethodGet, "/health", nil)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := newTestServer(nil, nil)
	s.opts.Address = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}
