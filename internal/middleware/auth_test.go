package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/buscoapp/busco/internal/auth"
	"github.com/buscoapp/busco/internal/database"
	"github.com/buscoapp/busco/internal/model"
	"github.com/buscoapp/busco/internal/store"
)

const testSecret = "middleware-test-secret"

func setupAuthMiddlewareDB(t *testing.T) *store.UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewUserStore(db)
}

func TestRequireAuthMissingHeader(t *testing.T) {
	us := setupAuthMiddlewareDB(t)

	handler := RequireAuth(testSecret, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/users/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	us := setupAuthMiddlewareDB(t)

	handler := RequireAuth(testSecret, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	for _, header := range []string{"Basic abc123", "Bearer", "garbage"} {
		req := httptest.NewRequest("GET", "/api/users/me", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want %d", header, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	us := setupAuthMiddlewareDB(t)

	handler := RequireAuth(testSecret, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	us := setupAuthMiddlewareDB(t)

	u, err := us.Create("Alice", "alice@example.com", "senha123", model.AccountFree)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := auth.GenerateToken(testSecret, u)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var got auth.Session
	handler := RequireAuth(testSecret, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected session in request context")
		}
		got = sess
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.UserID != u.ID {
		t.Errorf("UserID = %d, want %d", got.UserID, u.ID)
	}
	if got.AccountType != model.AccountFree {
		t.Errorf("AccountType = %q, want %q", got.AccountType, model.AccountFree)
	}
}

func TestRequireAuthRefreshesAccountType(t *testing.T) {
	us := setupAuthMiddlewareDB(t)

	u, _ := us.Create("Bob", "bob@example.com", "senha123", model.AccountFree)
	token, _ := auth.GenerateToken(testSecret, u)

	// Upgrade after the token was issued.
	if _, err := us.SetAccountType(u.ID, model.AccountPremium); err != nil {
		t.Fatalf("upgrade account: %v", err)
	}

	var got auth.Session
	handler := RequireAuth(testSecret, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/shopping-lists", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got.AccountType != model.AccountPremium {
		t.Errorf("AccountType = %q, want premium from database", got.AccountType)
	}
}

func TestRequireAuthDeletedUser(t *testing.T) {
	us := setupAuthMiddlewareDB(t)

	u, _ := us.Create("Gone", "gone@example.com", "senha123", model.AccountFree)
	token, _ := auth.GenerateToken(testSecret, u)
	if err := us.Delete(u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	handler := RequireAuth(testSecret, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func roleRequest(accountType string) *http.Request {
	ctx := auth.WithSession(context.Background(), auth.Session{UserID: 1, AccountType: accountType})
	return httptest.NewRequest("GET", "/", nil).WithContext(ctx)
}

func TestRequireAdmin(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		accountType string
		want        int
	}{
		{model.AccountAdmin, http.StatusOK},
		{model.AccountPremium, http.StatusForbidden},
		{model.AccountFree, http.StatusForbidden},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		RequireAdmin(okHandler).ServeHTTP(rec, roleRequest(tt.accountType))
		if rec.Code != tt.want {
			t.Errorf("account %q: status = %d, want %d", tt.accountType, rec.Code, tt.want)
		}
	}
}

func TestRequirePremium(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		accountType string
		want        int
	}{
		{model.AccountAdmin, http.StatusOK},
		{model.AccountPremium, http.StatusOK},
		{model.AccountFree, http.StatusForbidden},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		RequirePremium(okHandler).ServeHTTP(rec, roleRequest(tt.accountType))
		if rec.Code != tt.want {
			t.Errorf("account %q: status = %d, want %d", tt.accountType, rec.Code, tt.want)
		}
	}
}
