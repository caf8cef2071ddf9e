package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// SessionObserver is notified when a session ends so per-user state can be torn down.
type SessionObserver interface {
	EndSession(ctx context.Context, userID string) int
}

const sessionIssuer = "campstats"

// sessionClaims carries the principal inside a signed session token.
type sessionClaims struct {
	Email              string `json:"email"`
	Name               string `json:"name,omitempty"`
	Role               string `json:"role"`
	Site               string `json:"site,omitempty"`
	SiteAccessApproved bool   `json:"site_access_approved,omitempty"`
	CanViewCamps       bool   `json:"can_view_camps,omitempty"`
	jwt.RegisteredClaims
}

// AuthService authenticates accounts and issues and validates HS256 session tokens.
type AuthService struct {
	credentials    CredentialStore
	observer       SessionObserver
	verifyPassword PasswordVerifier
	secret         []byte
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, observer SessionObserver, verify PasswordVerifier, secret []byte, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(credentials, observer, verify, secret, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, observer SessionObserver, verify PasswordVerifier, secret []byte, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		observer:       observer,
		verifyPassword: verify,
		secret:         append([]byte(nil), secret...),
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a signed session token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"role", result.User.Role,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if err = s.verifyPassword(creds.PasswordHash, params.Password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	var principal Principal
	principal, err = PrincipalForUser(creds.User)
	if err != nil {
		return
	}

	now := s.now()
	expiresAt := now.Add(s.sessionTTL)
	var token string
	token, err = s.sign(principal, now, expiresAt)
	if err != nil {
		return
	}

	result = AuthenticateResult{
		User:      creds.User,
		Principal: principal,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return
}

// ValidateSession verifies a session token and returns the principal it carries.
// A token whose role cannot be decoded yields ErrAccessUndetermined.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrInvalidCredentials
		return
	}

	claims := &sessionClaims{}
	_, parseErr := jwt.ParseWithClaims(trimmed, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			err = ErrSessionExpired
			return
		}
		err = fmt.Errorf("%w: %v", ErrUnauthorized, parseErr)
		return
	}

	if strings.TrimSpace(claims.Subject) == "" {
		err = fmt.Errorf("%w: token without subject", ErrAccessUndetermined)
		return
	}
	var role Role
	role, err = ParseRole(claims.Role, claims.Site, Permissions{
		SiteAccessApproved: claims.SiteAccessApproved,
		CanViewCamps:       claims.CanViewCamps,
	})
	if err != nil {
		return
	}

	principal = Principal{
		UserID:      claims.Subject,
		Email:       normalizeEmail(claims.Email),
		DisplayName: claims.Name,
		Role:        role,
	}
	return
}

// EndSession ends the principal's session and drops every cached view held for it.
func (s *AuthService) EndSession(ctx context.Context, principal Principal) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if strings.TrimSpace(principal.UserID) == "" {
		return ErrAccessUndetermined
	}
	removed := 0
	if s.observer != nil {
		removed = s.observer.EndSession(ctx, principal.UserID)
	}
	s.loggerWith(ctx, "EndSession", principalAttrs(principal)...).
		InfoContext(ctx, "session ended", "cache_entries", removed)
	return nil
}

func (s *AuthService) sign(principal Principal, issuedAt, expiresAt time.Time) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("session secret not configured")
	}
	perms := RolePermissions(principal.Role)
	claims := sessionClaims{
		Email:              principal.Email,
		Name:               principal.DisplayName,
		Role:               principal.Role.Name(),
		Site:               RoleSite(principal.Role),
		SiteAccessApproved: perms.SiteAccessApproved,
		CanViewCamps:       perms.CanViewCamps,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
