package account

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/domain/directory"
	"github.com/careorbit/clinic/internal/platform/auth"
)

type fakeAccounts struct {
	creds   map[string]*directory.Credentials // role/username
	doctors map[uuid.UUID]*directory.DoctorProfile
	admins  map[uuid.UUID]*directory.Admin
	touched []uuid.UUID
}

func (f *fakeAccounts) Credentials(_ context.Context, role domain.Role, username string) (*directory.Credentials, error) {
	c, ok := f.creds[string(role)+"/"+username]
	if !ok {
		return nil, fmt.Errorf("%w: %s account", domain.ErrNotFound, role)
	}
	return c, nil
}

func (f *fakeAccounts) TouchLastLogin(_ context.Context, _ domain.Role, id uuid.UUID, _ time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeAccounts) GetAdmin(_ context.Context, id uuid.UUID) (*directory.Admin, error) {
	a, ok := f.admins[id]
	if !ok {
		return nil, fmt.Errorf("%w: admin %s", domain.ErrNotFound, id)
	}
	return a, nil
}

func (f *fakeAccounts) GetDoctor(_ context.Context, id uuid.UUID) (*directory.DoctorProfile, error) {
	d, ok := f.doctors[id]
	if !ok {
		return nil, fmt.Errorf("%w: doctor %s", domain.ErrNotFound, id)
	}
	return d, nil
}

type env struct {
	svc      *Service
	accounts *fakeAccounts
	tokens   *auth.TokenManager
	revoked  *auth.MemoryRevocationStore
	doctorID uuid.UUID
	adminID  uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	hash := func(pw string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		require.NoError(t, err)
		return string(h)
	}
	doctorID, adminID, retiredID := uuid.New(), uuid.New(), uuid.New()
	accounts := &fakeAccounts{
		creds: map[string]*directory.Credentials{
			"doctor/dr_smith": {ID: doctorID, Name: "Dr. Smith", PasswordHash: hash("doctor123"), Active: true},
			"doctor/dr_gone":  {ID: retiredID, Name: "Dr. Gone", PasswordHash: hash("doctor123"), Active: false},
			"admin/reception": {ID: adminID, Name: "Reception", PasswordHash: hash("reception123"), Active: true},
		},
		doctors: map[uuid.UUID]*directory.DoctorProfile{
			doctorID: {Doctor: directory.Doctor{ID: doctorID, Name: "Dr. Smith", RoomNo: "R101"}, DepartmentName: "ENT"},
		},
		admins: map[uuid.UUID]*directory.Admin{
			adminID: {ID: adminID, Username: "reception", Name: "Reception"},
		},
	}
	tokens := auth.NewTokenManager([]byte(strings.Repeat("k", 32)), "careorbit", time.Hour)
	revoked := auth.NewMemoryRevocationStore(time.Minute)
	t.Cleanup(revoked.Close)
	return &env{
		svc:      NewService(accounts, tokens, revoked, zerolog.Nop()),
		accounts: accounts,
		tokens:   tokens,
		revoked:  revoked,
		doctorID: doctorID,
		adminID:  adminID,
	}
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	e := newEnv(t)
	sess, err := e.svc.Login(context.Background(), domain.RoleDoctor, " dr_smith ", "doctor123")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", sess.TokenType)
	assert.Equal(t, e.doctorID, sess.Principal.ID)

	claims, err := e.tokens.Parse(sess.AccessToken)
	require.NoError(t, err)
	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDoctor, p.Role)
	assert.Equal(t, []uuid.UUID{e.doctorID}, e.accounts.touched)
}

func TestLogin_Failures(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name     string
		role     domain.Role
		username string
		password string
		want     error
	}{
		{"wrong password", domain.RoleDoctor, "dr_smith", "nope", domain.ErrUnauthorized},
		{"unknown user", domain.RoleDoctor, "dr_who", "doctor123", domain.ErrUnauthorized},
		{"wrong table", domain.RoleAdmin, "dr_smith", "doctor123", domain.ErrUnauthorized},
		{"inactive", domain.RoleDoctor, "dr_gone", "doctor123", domain.ErrUnauthorized},
		{"blank username", domain.RoleAdmin, "  ", "x", domain.ErrValidation},
		{"blank password", domain.RoleAdmin, "reception", "", domain.ErrValidation},
		{"bad role", domain.Role("nurse"), "reception", "x", domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := e.svc.Login(context.Background(), tt.role, tt.username, tt.password)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, sess)
		})
	}
	assert.Empty(t, e.accounts.touched)
}

func TestLogout_RevokesToken(t *testing.T) {
	e := newEnv(t)
	sess, err := e.svc.Login(context.Background(), domain.RoleAdmin, "reception", "reception123")
	require.NoError(t, err)
	claims, err := e.tokens.Parse(sess.AccessToken)
	require.NoError(t, err)

	require.NoError(t, e.svc.Logout(context.Background(), sess.Principal, claims.ID, claims.ExpiresAt.Time))
	revoked, err := e.revoked.IsRevoked(context.Background(), claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.ErrorIs(t, e.svc.Logout(context.Background(), sess.Principal, "", time.Now()), domain.ErrValidation)
	assert.ErrorIs(t, e.svc.Logout(context.Background(), domain.Principal{}, claims.ID, time.Now()), domain.ErrUnauthorized)
}

func TestMe(t *testing.T) {
	e := newEnv(t)

	prof, err := e.svc.Me(context.Background(), domain.Principal{ID: e.doctorID, Role: domain.RoleDoctor})
	require.NoError(t, err)
	require.NotNil(t, prof.Doctor)
	assert.Equal(t, "ENT", prof.Doctor.DepartmentName)
	assert.Nil(t, prof.Admin)

	prof, err = e.svc.Me(context.Background(), domain.Principal{ID: e.adminID, Role: domain.RoleAdmin})
	require.NoError(t, err)
	require.NotNil(t, prof.Admin)
	assert.Equal(t, "reception", prof.Admin.Username)

	_, err = e.svc.Me(context.Background(), domain.Principal{ID: uuid.New(), Role: domain.RoleDoctor})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHandler_LoginAndLogout(t *testing.T) {
	env := newEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/auth/doctor/login",
		strings.NewReader(`{"username":"dr_smith","password":"doctor123"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.login(domain.RoleDoctor)(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access_token"`)

	req = httptest.NewRequest(http.MethodPost, "/auth/doctor/login",
		strings.NewReader(`{"username":"dr_smith","password":"wrong"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.login(domain.RoleDoctor)(e.NewContext(req, httptest.NewRecorder()))
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)

	// Logout without claims on the context is a client error.
	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), domain.Principal{ID: env.doctorID, Role: domain.RoleDoctor}))
	err = h.Logout(e.NewContext(req, httptest.NewRecorder()))
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)

	_, issued, err := env.tokens.Issue(domain.Principal{ID: env.doctorID, Role: domain.RoleDoctor})
	require.NoError(t, err)
	ctx := auth.WithClaims(auth.WithPrincipal(req.Context(), domain.Principal{ID: env.doctorID, Role: domain.RoleDoctor}), issued)
	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil).WithContext(ctx)
	rec = httptest.NewRecorder()
	require.NoError(t, h.Logout(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
