package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careorbit/clinic/internal/domain"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only-32b")

func newTestManager() *TokenManager {
	return NewTokenManager(testSigningKey, "careorbit-test", time.Hour)
}

type failingStore struct{}

func (failingStore) Revoke(context.Context, string, time.Time) error { return errors.New("down") }
func (failingStore) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

func serve(t *testing.T, mw echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, error, *domain.Principal) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *domain.Principal
	err := mw(func(c echo.Context) error {
		p, ok := PrincipalFromContext(c.Request().Context())
		if ok {
			seen = &p
		}
		return c.String(http.StatusOK, "ok")
	})(c)
	return rec, err, seen
}

func assertStatus(t *testing.T, err error, code int) {
	t.Helper()
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()
	_, err, _ := serve(t, Authenticate(newTestManager(), store, zerolog.Nop()), "")
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_BadFormat(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()
	_, err, _ := serve(t, Authenticate(newTestManager(), store, zerolog.Nop()), "Basic abc")
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_ValidToken(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()
	tm := newTestManager()
	want := domain.Principal{ID: uuid.New(), Role: domain.RoleDoctor, Name: "Dr. Smith"}
	tok, _, err := tm.Issue(want)
	if err != nil {
		t.Fatal(err)
	}

	rec, err, got := serve(t, Authenticate(tm, store, zerolog.Nop()), "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if got == nil || *got != want {
		t.Errorf("principal = %+v, want %+v", got, want)
	}
}

func TestAuthenticate_RevokedToken(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()
	tm := newTestManager()
	tok, claims, _ := tm.Issue(domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin})
	_ = store.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time)

	_, err, _ := serve(t, Authenticate(tm, store, zerolog.Nop()), "Bearer "+tok)
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_RevocationStoreDown(t *testing.T) {
	tm := newTestManager()
	tok, _, _ := tm.Issue(domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin})
	_, err, _ := serve(t, Authenticate(tm, failingStore{}, zerolog.Nop()), "Bearer "+tok)
	assertStatus(t, err, http.StatusServiceUnavailable)
}

func TestAuthenticate_WrongKeyOrExpired(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()
	tm := newTestManager()

	other := NewTokenManager([]byte("another-secret-key-that-is-long-enough"), "careorbit-test", time.Hour)
	forged, _, _ := other.Issue(domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin})
	_, err, _ := serve(t, Authenticate(tm, store, zerolog.Nop()), "Bearer "+forged)
	assertStatus(t, err, http.StatusUnauthorized)

	expired := NewTokenManager(testSigningKey, "careorbit-test", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue(domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin})
	_, err, _ = serve(t, Authenticate(tm, store, zerolog.Nop()), "Bearer "+old)
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_UnknownRole(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uuid.NewString(),
			Issuer:    "careorbit-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "nurse",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if err != nil {
		t.Fatal(err)
	}
	_, err, _ = serve(t, Authenticate(newTestManager(), store, zerolog.Nop()), "Bearer "+tok)
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware_Fallback(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()
	_, err, got := serve(t, DevAuthMiddleware(newTestManager(), store, zerolog.Nop()), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Role != domain.RoleAdmin || got.ID != DevPrincipalID {
		t.Errorf("expected dev admin principal, got %+v", got)
	}
}

func TestDevAuthMiddleware_StillValidatesTokens(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()
	_, err, _ := serve(t, DevAuthMiddleware(newTestManager(), store, zerolog.Nop()), "Bearer garbage")
	assertStatus(t, err, http.StatusUnauthorized)
}
