package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-signing-secret")

func signedToken(t *testing.T, accountID string, secret []byte, expiresAt time.Time) string {
	t.Helper()
	claims := &Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func newAuthRouter(secret []byte) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	var caller string
	r := gin.New()
	r.GET("/protected", AuthMiddleware(secret), func(c *gin.Context) {
		if accountID, ok := GetAccountID(c); ok {
			caller = accountID
		}
		c.Status(http.StatusOK)
	})
	return r, &caller
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("valid token exposes the caller identity", func(t *testing.T) {
		router, caller := newAuthRouter(testSecret)

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "acc-1", testSecret, time.Now().Add(time.Hour)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if *caller != "acc-1" {
			t.Errorf("expected caller acc-1, got %q", *caller)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		router, _ := newAuthRouter(testSecret)

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("wrong scheme", func(t *testing.T) {
		router, _ := newAuthRouter(testSecret)

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("wrong signing key", func(t *testing.T) {
		router, caller := newAuthRouter(testSecret)

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "acc-1", []byte("other-secret"), time.Now().Add(time.Hour)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		if *caller != "" {
			t.Errorf("rejected request must not expose an identity, got %q", *caller)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		router, _ := newAuthRouter(testSecret)

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "acc-1", testSecret, time.Now().Add(-time.Hour)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("no identity outside the auth gate", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if _, ok := GetAccountID(c); ok {
			t.Error("expected no identity on an unauthenticated context")
		}
	})
}
