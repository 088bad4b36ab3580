// Package identity signs members in and out and answers "who am I" from the
// session cache without touching the network.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sas-finance/service_layer/internal/backend"
	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/internal/mapping"
	"github.com/sas-finance/service_layer/internal/session"
	"github.com/sas-finance/service_layer/pkg/logger"
)

const (
	membersTable = "members"

	fallbackFirstName = "Utilisateur"
	reasonNoUser      = "Utilisateur non trouvé"
)

// Redirector sends the user back to the sign-in entry point.
type Redirector interface {
	RedirectToSignIn()
}

// RedirectFunc adapts a plain function to Redirector.
type RedirectFunc func()

func (f RedirectFunc) RedirectToSignIn() { f() }

type noRedirect struct{}

func (noRedirect) RedirectToSignIn() {}

// Service is the identity service.
type Service struct {
	auth     backend.Auth
	data     backend.Data
	cache    *session.Cache
	redirect Redirector
	log      *logger.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithRedirector(r Redirector) Option {
	return func(s *Service) {
		if r != nil {
			s.redirect = r
		}
	}
}

// WithClock overrides the clock used for credential expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates an identity service.
func New(auth backend.Auth, data backend.Data, cache *session.Cache, opts ...Option) *Service {
	s := &Service{
		auth:     auth,
		data:     data,
		cache:    cache,
		redirect: noRedirect{},
		log:      logger.NewDefault("identity"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Sign-up / Sign-in / Sign-out
// =============================================================================

// SignUp creates an account. The returned identity is minimal: the profile
// row is created asynchronously by the backend and may not exist yet.
func (s *Service) SignUp(ctx context.Context, email, password, firstName, lastName string) (*domain.Member, error) {
	user, err := s.auth.SignUp(ctx, email, password, map[string]any{
		"first_name": firstName,
		"last_name":  lastName,
	})
	if err != nil {
		s.log.WithError(err).WithField("email", email).Info("sign-up rejected")
		return nil, authFailure(err)
	}
	if user == nil || user.ID == "" {
		return nil, &domain.AuthError{Reason: reasonNoUser}
	}

	s.log.WithField("user_id", user.ID).Info("account created")
	return &domain.Member{
		ID:        user.ID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      domain.RoleRegular,
		Status:    domain.MemberActive,
	}, nil
}

// SignIn authenticates, resolves the member profile and caches the session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.Member, error) {
	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		s.log.WithError(err).WithField("email", email).Info("sign-in rejected")
		return nil, authFailure(err)
	}
	if sess == nil || sess.User.ID == "" {
		return nil, &domain.AuthError{Reason: reasonNoUser}
	}

	member := s.resolveProfile(backend.WithCredential(ctx, sess.AccessToken), sess.User, email)
	if err := s.cache.Write(ctx, member, credentialsOf(sess)); err != nil {
		return nil, fmt.Errorf("cache session: %w", err)
	}

	s.log.WithField("member_id", member.ID).WithField("role", member.Role).Info("signed in")
	return &member, nil
}

// SignOut ends the session. Remote and local failures are logged, never returned.
func (s *Service) SignOut(ctx context.Context) {
	if credential := s.cache.Credential(); credential != "" {
		if err := s.auth.SignOut(ctx, credential); err != nil {
			s.log.WithError(err).Warn("remote sign-out failed")
		}
	}
	if err := s.cache.Clear(ctx); err != nil {
		s.log.WithError(err).Warn("clearing session cache failed")
	}
	s.log.Info("signed out")
	s.redirect.RedirectToSignIn()
}

// =============================================================================
// Synchronous queries
// =============================================================================

// CurrentIdentity returns the cached identity. It may be stale; use Refresh
// for an authoritative answer.
func (s *Service) CurrentIdentity() (*domain.Member, bool) {
	return s.cache.Read()
}

func (s *Service) IsAuthenticated() bool {
	return s.cache.IsPresent()
}

// =============================================================================
// Refresh
// =============================================================================

// Refresh re-validates the cached credential with the auth backend and
// re-resolves the profile. An expired or rejected credential is renewed with
// the cached refresh token; when that is not possible the session is signed
// out locally and domain.ErrSessionExpired is returned.
func (s *Service) Refresh(ctx context.Context) (*domain.Member, error) {
	credential := s.cache.Credential()
	if credential == "" {
		return nil, domain.ErrNotAuthenticated
	}

	if s.expired(credential) {
		s.log.Info("cached credential expired")
		return s.renew(ctx)
	}

	user, err := s.auth.GetUser(ctx, credential)
	if err != nil {
		if rejected(err) {
			s.log.WithError(err).Info("cached credential rejected")
			return s.renew(ctx)
		}
		return nil, fmt.Errorf("verify session: %w", err)
	}

	member := s.resolveProfile(ctx, *user, user.Email)
	if err := s.cache.UpdateIdentity(ctx, member); err != nil {
		return nil, fmt.Errorf("cache session: %w", err)
	}
	return &member, nil
}

// renew exchanges the cached refresh token for a new session.
func (s *Service) renew(ctx context.Context) (*domain.Member, error) {
	refreshToken := s.cache.RefreshToken()
	if refreshToken == "" {
		s.dropSession(ctx)
		return nil, domain.ErrSessionExpired
	}

	sess, err := s.auth.RefreshSession(ctx, refreshToken)
	if err != nil {
		if rejected(err) {
			s.log.WithError(err).Info("refresh token rejected")
			s.dropSession(ctx)
			return nil, domain.ErrSessionExpired
		}
		return nil, fmt.Errorf("renew session: %w", err)
	}
	if sess == nil || sess.User.ID == "" {
		s.dropSession(ctx)
		return nil, domain.ErrSessionExpired
	}

	member := s.resolveProfile(backend.WithCredential(ctx, sess.AccessToken), sess.User, sess.User.Email)
	if err := s.cache.Write(ctx, member, credentialsOf(sess)); err != nil {
		return nil, fmt.Errorf("cache session: %w", err)
	}
	s.log.WithField("member_id", member.ID).Info("session renewed")
	return &member, nil
}

// rejected reports whether the auth backend refused a token, as opposed to
// failing to answer.
func rejected(err error) bool {
	var remote *backend.RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	switch remote.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

func credentialsOf(sess *backend.AuthSession) session.Credentials {
	return session.Credentials{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken}
}

// expired decodes the credential's exp claim without verifying the signature;
// the backend remains the authority. Opaque credentials never expire locally.
func (s *Service) expired(credential string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !s.now().Before(claims.ExpiresAt.Time)
}

func (s *Service) dropSession(ctx context.Context) {
	if err := s.cache.Clear(ctx); err != nil {
		s.log.WithError(err).Warn("clearing session cache failed")
	}
	s.redirect.RedirectToSignIn()
}

// =============================================================================
// Profile resolution
// =============================================================================

// resolveProfile finds the member row for an auth user: by user_id, then by
// id, then synthesized from the sign-up metadata when the row is not there yet.
func (s *Service) resolveProfile(ctx context.Context, user backend.AuthUser, email string) domain.Member {
	for _, column := range []string{"user_id", "id"} {
		var row mapping.MemberRow
		err := s.data.Select(ctx, backend.Query{
			Table:   membersTable,
			Filters: []backend.Filter{backend.Eq(column, user.ID)},
		}, &row)
		if err == nil {
			return mapping.MemberToDomain(row)
		}
		if !errors.Is(err, backend.ErrNoRows) {
			s.log.WithError(err).WithField("lookup", column).Warn("profile lookup failed")
		}
	}

	s.log.WithField("user_id", user.ID).Info("no profile row yet, using auth metadata")
	firstName := user.MetadataString("first_name")
	if firstName == "" {
		firstName = fallbackFirstName
	}
	if email == "" {
		email = user.Email
	}
	return domain.Member{
		ID:        user.ID,
		Email:     email,
		FirstName: firstName,
		LastName:  user.MetadataString("last_name"),
		Role:      domain.RoleRegular,
		Status:    domain.MemberActive,
	}
}

// authFailure turns a backend rejection into an AuthError carrying the
// backend's own message.
func authFailure(err error) error {
	var remote *backend.RemoteError
	if errors.As(err, &remote) && remote.Message != "" {
		return &domain.AuthError{Reason: remote.Message, Err: err}
	}
	return &domain.AuthError{Reason: err.Error(), Err: err}
}
