package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/domain/directory"
	"github.com/careorbit/clinic/internal/platform/auth"
)

// Accounts is the slice of the directory store that login needs.
type Accounts interface {
	Credentials(ctx context.Context, role domain.Role, username string) (*directory.Credentials, error)
	TouchLastLogin(ctx context.Context, role domain.Role, id uuid.UUID, at time.Time) error
	GetAdmin(ctx context.Context, id uuid.UUID) (*directory.Admin, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.DoctorProfile, error)
}

type TokenIssuer interface {
	Issue(p domain.Principal) (string, *auth.Claims, error)
}

// Session is returned on successful login.
type Session struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Principal   domain.Principal `json:"user"`
}

// Profile describes the caller. Exactly one of Admin or Doctor is set.
type Profile struct {
	Role   domain.Role              `json:"role"`
	Admin  *directory.Admin         `json:"admin,omitempty"`
	Doctor *directory.DoctorProfile `json:"doctor,omitempty"`
}

type Service struct {
	accounts Accounts
	tokens   TokenIssuer
	revoked  auth.RevocationStore
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(accounts Accounts, tokens TokenIssuer, revoked auth.RevocationStore, logger zerolog.Logger) *Service {
	return &Service{accounts: accounts, tokens: tokens, revoked: revoked, now: time.Now, logger: logger}
}

// Compared against when the username is unknown so both failure paths cost
// one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("careorbit"), bcrypt.DefaultCost)
	return h
})

var errBadCredentials = fmt.Errorf("%w: invalid username or password", domain.ErrUnauthorized)

func (s *Service) Login(ctx context.Context, role domain.Role, username, password string) (*Session, error) {
	if !role.Valid() {
		return nil, domain.Invalid("role", fmt.Sprintf("unknown role %q", role))
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.Missing("username")
	}
	if password == "" {
		return nil, domain.Missing("password")
	}

	cred, err := s.accounts.Credentials(ctx, role, username)
	if errors.Is(err, domain.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		s.logger.Info().Str("role", string(role)).Str("username", username).Msg("login failed: unknown user")
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		s.logger.Info().Str("role", string(role)).Str("username", username).Msg("login failed: bad password")
		return nil, errBadCredentials
	}
	if !cred.Active {
		return nil, fmt.Errorf("%w: account is disabled", domain.ErrUnauthorized)
	}

	p := domain.Principal{ID: cred.ID, Role: role, Name: cred.Name}
	token, claims, err := s.tokens.Issue(p)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	if err := s.accounts.TouchLastLogin(ctx, role, cred.ID, s.now()); err != nil {
		s.logger.Warn().Err(err).Str("user_id", cred.ID.String()).Msg("failed to record last login")
	}
	s.logger.Info().Str("role", string(role)).Str("user_id", cred.ID.String()).Msg("login")
	return &Session{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		Principal:   p,
	}, nil
}

// Logout revokes the token identified by jti until it would have expired.
func (s *Service) Logout(ctx context.Context, p domain.Principal, jti string, expiresAt time.Time) error {
	if err := p.Require(domain.RoleAdmin, domain.RoleDoctor); err != nil {
		return err
	}
	if jti == "" {
		return domain.Missing("jti")
	}
	if err := s.revoked.Revoke(ctx, jti, expiresAt); err != nil {
		return fmt.Errorf("%w: revoke token: %w", domain.ErrStore, err)
	}
	s.logger.Info().Str("user_id", p.ID.String()).Str("jti", jti).Msg("logout")
	return nil
}

func (s *Service) Me(ctx context.Context, p domain.Principal) (*Profile, error) {
	if err := p.Require(domain.RoleAdmin, domain.RoleDoctor); err != nil {
		return nil, err
	}
	if p.IsDoctor() {
		d, err := s.accounts.GetDoctor(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return &Profile{Role: p.Role, Doctor: d}, nil
	}
	a, err := s.accounts.GetAdmin(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{Role: p.Role, Admin: a}, nil
}
