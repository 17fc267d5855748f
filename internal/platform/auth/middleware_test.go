package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(sub string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func runMiddleware(t *testing.T, cfg JWTConfig, path, authorization string, handler echo.HandlerFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	return JWTMiddleware(cfg)(handler)(c)
}

func expectUnauthorized(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	err := runMiddleware(t, JWTConfig{Secret: testSecret}, "/conversions", "", okHandler)
	expectUnauthorized(t, err)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runMiddleware(t, JWTConfig{Secret: testSecret}, "/conversions", tt.header, okHandler)
			expectUnauthorized(t, err)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	claims := validClaims("lab-system")
	claims.Scope = "conversions:read conversions:write"
	tokenStr := createTestToken(t, claims, testSecret)

	called := false
	handler := func(c echo.Context) error {
		called = true
		ctx := c.Request().Context()
		if sub := SubjectFromContext(ctx); sub != "lab-system" {
			t.Errorf("expected subject lab-system, got %s", sub)
		}
		if scopes := ScopesFromContext(ctx); len(scopes) != 2 || scopes[1] != "conversions:write" {
			t.Errorf("unexpected scopes %v", scopes)
		}
		if sub, _ := c.Get("auth_subject").(string); sub != "lab-system" {
			t.Errorf("expected auth_subject on echo context, got %q", sub)
		}
		return okHandler(c)
	}

	if err := runMiddleware(t, JWTConfig{Secret: testSecret}, "/conversions", "Bearer "+tokenStr, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestRequireScope(t *testing.T) {
	tests := []struct {
		name   string
		scope  string
		wantOK bool
	}{
		{"granted", "conversions:read conversions:write", true},
		{"other scope", "patients:read", false},
		{"no scope claim", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims("lab-system")
			claims.Scope = tt.scope
			tokenStr := createTestToken(t, claims, testSecret)

			handler := RequireScope("conversions:read")(okHandler)
			err := runMiddleware(t, JWTConfig{Secret: testSecret}, "/conversions", "Bearer "+tokenStr, handler)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %v", err)
			}
		})
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims("lab-system")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	tokenStr := createTestToken(t, claims, testSecret)

	err := runMiddleware(t, JWTConfig{Secret: testSecret}, "/conversions", "Bearer "+tokenStr, okHandler)
	expectUnauthorized(t, err)
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("lab-system"), []byte("another-secret"))

	err := runMiddleware(t, JWTConfig{Secret: testSecret}, "/conversions", "Bearer "+tokenStr, okHandler)
	expectUnauthorized(t, err)
}

func TestJWTMiddleware_IssuerAndAudience(t *testing.T) {
	claims := validClaims("lab-system")
	claims.Issuer = "https://idp.example.org"
	claims.Audience = jwt.ClaimStrings{"loinc-conversion"}
	tokenStr := createTestToken(t, claims, testSecret)

	cfg := JWTConfig{Secret: testSecret, Issuer: "https://idp.example.org", Audience: "loinc-conversion"}
	if err := runMiddleware(t, cfg, "/conversions", "Bearer "+tokenStr, okHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Audience = "someone-else"
	expectUnauthorized(t, runMiddleware(t, cfg, "/conversions", "Bearer "+tokenStr, okHandler))
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	cfg := JWTConfig{Secret: testSecret, Skipper: AuthSkipper}

	if err := runMiddleware(t, cfg, "/health", "", okHandler); err != nil {
		t.Fatalf("expected /health to skip auth, got %v", err)
	}
	expectUnauthorized(t, runMiddleware(t, cfg, "/conversions", "", okHandler))
}

func TestJWTConfig_Enabled(t *testing.T) {
	if (JWTConfig{}).Enabled() {
		t.Error("expected empty config to be disabled")
	}
	if !(JWTConfig{Secret: testSecret}).Enabled() {
		t.Error("expected secret to enable auth")
	}
	if !(JWTConfig{JWKSURL: "https://idp.example.org/jwks"}).Enabled() {
		t.Error("expected JWKS URL to enable auth")
	}
}
