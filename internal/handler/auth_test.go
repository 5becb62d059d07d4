package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ovenly/api/internal/auth"
	"github.com/ovenly/api/internal/database"
	"github.com/ovenly/api/internal/enum"
	"github.com/ovenly/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	userByEmail map[string]database.User
}

func newMockStore() *mockAuthStore {
	return &mockAuthStore{userByEmail: make(map[string]database.User)}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.userByEmail[u.Email] = u
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	u, ok := m.userByEmail[email]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Helpers ---

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeTestUser(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		Email:        "baker@test.com",
		PasswordHash: hashPassword(t, "correct-password"),
		FullName:     "Test Baker",
		Role:         enum.UserRoleBaker,
		IsActive:     true,
	}
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func newAuthRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testSecret, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t)
	store.addUser(user)

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "baker@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
	if resp["session_id"] == nil || resp["session_id"] == "" {
		t.Error("expected non-empty session_id")
	}

	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["email"] != "baker@test.com" {
		t.Errorf("user email: got %v, want baker@test.com", userResp["email"])
	}
	if userResp["role"] != "BAKER" {
		t.Errorf("user role: got %v, want BAKER", userResp["role"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockStore()
	store.addUser(makeTestUser(t))

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "baker@test.com",
		"password": "wrong-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t)
	user.IsActive = false
	store.addUser(user)

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "baker@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UserNotFound(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockStore()), "/auth/login", map[string]string{
		"email":    "nobody@test.com",
		"password": "password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockStore()), "/auth/login", map[string]string{
		"email": "baker@test.com",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestLogin_ReturnsValidAccessToken(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t)
	store.addUser(user)

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "baker@test.com",
		"password": "correct-password",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rr)
	accessToken, ok := resp["access_token"].(string)
	if !ok || accessToken == "" {
		t.Fatal("expected non-empty access_token string")
	}

	claims, err := auth.ValidateToken(testSecret, accessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.UserID != user.ID || claims.TenantID != user.TenantID {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Name != "Test Baker" {
		t.Errorf("name claim = %q", claims.Name)
	}
	if claims.SessionID() != resp["session_id"] {
		t.Errorf("session id mismatch: %q vs %v", claims.SessionID(), resp["session_id"])
	}
}

func TestLogin_EachLoginIsANewSession(t *testing.T) {
	store := newMockStore()
	store.addUser(makeTestUser(t))
	r := newAuthRouter(store)
	body := map[string]string{"email": "baker@test.com", "password": "correct-password"}

	first := decodeResponse(t, postJSON(t, r, "/auth/login", body))
	second := decodeResponse(t, postJSON(t, r, "/auth/login", body))
	if first["session_id"] == second["session_id"] {
		t.Error("expected distinct session ids")
	}
}
