package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestContextKeysRoundTrip(t *testing.T) {
	id := uuid.New()
	ctx := context.WithValue(context.Background(), ClerkIDKey, "user_abc")
	ctx = context.WithValue(ctx, UserIDKey, id)

	clerkID, ok := GetClerkID(ctx)
	if !ok || clerkID != "user_abc" {
		t.Errorf("GetClerkID = %q, %v", clerkID, ok)
	}
	userID, ok := GetUserID(ctx)
	if !ok || userID != id {
		t.Errorf("GetUserID = %v, %v", userID, ok)
	}

	if _, ok := GetClerkID(context.Background()); ok {
		t.Error("GetClerkID on empty context should report absent")
	}
	if _, ok := GetUserID(context.Background()); ok {
		t.Error("GetUserID on empty context should report absent")
	}
}

func TestClerkAuthRejectsBadHeaders(t *testing.T) {
	resolverCalled := false
	mw := ClerkAuthMiddleware(func(ctx context.Context, clerkID string) (uuid.UUID, error) {
		resolverCalled = true
		return uuid.Nil, nil
	})
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a valid token")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Token abc123"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want %d", c.name, rr.Code, http.StatusUnauthorized)
		}
	}
	if resolverCalled {
		t.Error("resolver should not run before token verification")
	}
}
