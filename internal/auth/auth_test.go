package auth

import (
	"context"
	"testing"

	"github.com/buscoapp/busco/internal/model"
)

func TestWithSessionAndFromContext(t *testing.T) {
	s := Session{UserID: 7, AccountType: "premium"}

	ctx := WithSession(context.Background(), s)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected Session in context")
	}
	if got.UserID != 7 {
		t.Errorf("UserID = %d, want 7", got.UserID)
	}
	if got.AccountType != "premium" {
		t.Errorf("AccountType = %q, want %q", got.AccountType, "premium")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing Session")
	}
	if UserID(context.Background()) != 0 {
		t.Error("UserID on empty context should be 0")
	}
	if IsAdmin(context.Background()) {
		t.Error("IsAdmin on empty context should be false")
	}
}

func TestRoleHelpers(t *testing.T) {
	cases := []struct {
		accountType string
		admin       bool
		lists       bool
	}{
		{"free", false, false},
		{"premium", false, true},
		{"admin", true, true},
	}
	for _, tc := range cases {
		ctx := WithSession(context.Background(), Session{UserID: 1, AccountType: tc.accountType})
		if IsAdmin(ctx) != tc.admin {
			t.Errorf("IsAdmin(%s) = %v, want %v", tc.accountType, IsAdmin(ctx), tc.admin)
		}
		if CanManageLists(ctx) != tc.lists {
			t.Errorf("CanManageLists(%s) = %v, want %v", tc.accountType, CanManageLists(ctx), tc.lists)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	user := &model.User{ID: 42, AccountType: model.AccountPremium}

	token, err := GenerateToken("test-secret", user)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ValidateToken("test-secret", token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.AccountType != model.AccountPremium {
		t.Errorf("AccountType = %q, want premium", claims.AccountType)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	user := &model.User{ID: 1, AccountType: model.AccountFree}

	token, err := GenerateToken("secret-a", user)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := ValidateToken("secret-b", token); err == nil {
		t.Fatal("expected validation failure with wrong secret")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	if _, err := ValidateToken("secret", "not-a-token"); err == nil {
		t.Fatal("expected validation failure for malformed token")
	}
}
