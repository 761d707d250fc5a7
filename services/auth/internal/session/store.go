package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/miyomint/storefront/pkg/auth"
	"github.com/miyomint/storefront/pkg/config"
	"github.com/miyomint/storefront/pkg/events"
	"github.com/miyomint/storefront/pkg/logger"
	"github.com/miyomint/storefront/services/auth/internal/domain"
	"github.com/miyomint/storefront/services/auth/internal/mailer"
	"github.com/miyomint/storefront/services/auth/internal/repository"
)

// Store owns session lifecycle: sign-up, sign-in, sign-out, link exchange and
// change notification. Sessions are stateless token pairs; the store is the
// only component that mints or invalidates them.
type Store interface {
	// CurrentSession returns nil on any failure (logged, never raised): an
	// unreadable token and no token look the same to callers.
	CurrentSession(ctx context.Context, accessToken string) *domain.Session

	// SignUp creates credentials and dispatches the verification email. It
	// does not persist the profile fields; that is a separate caller step.
	SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.User, string, error)

	SignIn(ctx context.Context, req *domain.SignInRequest) (*domain.Session, error)

	// SignOut always succeeds from the caller's perspective: local session
	// state is cleared and listeners notified even if remote cleanup fails.
	SignOut(ctx context.Context, accessToken string)

	// ExchangeLinkForSession turns an inbound verification/reset link into an
	// active session. Failures are classified Expired/Invalid/Unknown.
	ExchangeLinkForSession(ctx context.Context, rawURL string) (*domain.Session, error)

	// ResolveUser returns the user id behind an access token, 0 when the
	// identity backend does not know it yet.
	ResolveUser(ctx context.Context, accessToken string) (int64, error)

	// OnSessionChange registers a listener invoked on every session
	// transition. The returned handle must be called on consumer teardown.
	OnSessionChange(cb func(*domain.Session)) (unsubscribe func())

	RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error)

	// ResendVerification issues a fresh verification link. Unknown emails are
	// not revealed to the caller.
	ResendVerification(ctx context.Context, email string) error

	// RequestPasswordReset emails a one-time reset link; the redirect URL is
	// caller supplied and falls back to the storefront origin.
	RequestPasswordReset(ctx context.Context, req *domain.PasswordResetRequest) error
	ConfirmPasswordReset(ctx context.Context, req *domain.PasswordResetConfirm) error
}

type store struct {
	profiles repository.ProfileRepository
	verify   repository.VerifyRepository
	mailer   mailer.Service
	eventBus events.Publisher
	config   *config.Config

	mu        sync.Mutex
	listeners map[int64]func(*domain.Session)
	nextID    int64
}

func New(
	profiles repository.ProfileRepository,
	verify repository.VerifyRepository,
	mailer mailer.Service,
	eventBus events.Publisher,
	config *config.Config,
) Store {
	return &store{
		profiles:  profiles,
		verify:    verify,
		mailer:    mailer,
		eventBus:  eventBus,
		config:    config,
		listeners: make(map[int64]func(*domain.Session)),
	}
}

func (s *store) CurrentSession(ctx context.Context, accessToken string) *domain.Session {
	if accessToken == "" {
		return nil
	}

	claims, err := auth.Parse(accessToken, s.config.Auth.JWTSecret)
	if err != nil {
		logger.DebugContext(ctx, "Failed to read session token", "error", err)
		return nil
	}

	user, err := s.profiles.Get(ctx, claims.Sub)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load session user", "error", err, "user_id", claims.Sub)
		return nil
	}
	if user == nil {
		return nil
	}

	return &domain.Session{
		AccessToken: accessToken,
		ExpiresIn:   int64(time.Until(claims.ExpiresAt.Time).Seconds()),
		User:        user.ToUserInfo(),
	}
}

func (s *store) SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", domain.NewAuthError(domain.KindValidation, err.Error())
	}

	existing, err := s.profiles.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, "", domain.NewAuthError(domain.KindAlreadyExists, "email already registered")
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	// Credentials only; the caller persists the profile fields afterwards as
	// its own step (the two writes are not atomic).
	cred := &domain.SignUpRequest{Email: req.Email, Password: req.Password}
	user, err := s.profiles.Create(ctx, cred, passwordHash)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	verifyToken := uuid.NewString()
	expiresAt := time.Now().Add(s.config.Auth.EmailVerificationTTL)

	if err := s.verify.CreateEmailVerification(ctx, user.ID, verifyToken, expiresAt); err != nil {
		logger.ErrorContext(ctx, "Failed to create email verification token", "error", err, "user_id", user.ID)
		return nil, "", fmt.Errorf("failed to create verification token: %w", err)
	}

	verifyURL := s.buildVerificationURL(verifyToken)
	if err := s.mailer.SendVerificationEmail(user.Email, req.FullName, verifyURL, verifyToken); err != nil {
		logger.ErrorContext(ctx, "Failed to send verification email", "error", err, "user_id", user.ID)
		// Registration stands even when the email fails
	}

	event := events.UserRegisteredEvent{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  req.FullName,
		CreatedAt: user.CreatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.UserRegistered, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish user registered event", "error", err, "user_id", user.ID)
	}

	return user, verifyURL, nil
}

func (s *store) SignIn(ctx context.Context, req *domain.SignInRequest) (*domain.Session, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, domain.NewAuthError(domain.KindValidation, err.Error())
	}

	user, err := s.profiles.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.NewAuthError(domain.KindInvalidCredentials, "invalid credentials")
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.NewAuthError(domain.KindInvalidCredentials, "invalid credentials")
	}

	// Unverified email is not special-cased here; the profile carries the
	// flag and surfaces decide what to do with it.
	sess, err := s.mintSession(user)
	if err != nil {
		return nil, err
	}

	s.notify(sess)
	return sess, nil
}

func (s *store) SignOut(ctx context.Context, accessToken string) {
	if accessToken != "" {
		if _, err := auth.Parse(accessToken, s.config.Auth.JWTSecret); err != nil {
			logger.DebugContext(ctx, "Sign-out with unreadable token", "error", err)
		}
	}
	// Tokens are stateless, so there is nothing remote to revoke; local
	// session state is cleared unconditionally either way.
	s.notify(nil)
}

func (s *store) ExchangeLinkForSession(ctx context.Context, rawURL string) (*domain.Session, error) {
	creds := domain.ParseLinkURL(rawURL)
	if creds.Empty() {
		return nil, domain.NewAuthError(domain.KindLinkInvalid, "link carries no token material")
	}

	var (
		userID  int64
		viaCode bool
	)

	switch {
	case creds.HasTokenPair():
		claims, err := auth.Parse(creds.AccessToken, s.config.Auth.JWTSecret)
		if err != nil {
			// jwt reports expiry in prose ("token is expired"); the
			// classifier keys off that substring.
			return nil, domain.ClassifyExchangeError(err)
		}
		userID = claims.Sub

	case creds.HasCode():
		id, err := s.verify.ConsumeEmailVerification(ctx, creds.Code)
		switch {
		case errors.Is(err, repository.ErrVerificationExpired):
			return nil, domain.NewAuthError(domain.KindLinkExpired, "verification link expired")
		case err != nil:
			return nil, domain.NewAuthError(domain.KindTransport, err.Error())
		case id == 0:
			return nil, domain.NewAuthError(domain.KindLinkInvalid, "invalid or already used link")
		}
		userID = id
		viaCode = true
	}

	user, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, domain.NewAuthError(domain.KindNotFound, "user not found")
	}

	sess, err := s.mintSession(user)
	if err != nil {
		return nil, err
	}

	if viaCode {
		// Consuming a one-time code is the moment the address is proven
		event := events.UserVerifiedEvent{UserID: user.ID, Email: user.Email, VerifiedAt: time.Now()}
		if err := s.eventBus.Publish(ctx, events.UserVerified, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish user verified event", "error", err, "user_id", user.ID)
		}
	}

	s.notify(sess)
	return sess, nil
}

func (s *store) ResolveUser(ctx context.Context, accessToken string) (int64, error) {
	claims, err := auth.Parse(accessToken, s.config.Auth.JWTSecret)
	if err != nil {
		return 0, err
	}
	user, err := s.profiles.Get(ctx, claims.Sub)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, nil
	}
	return user.ID, nil
}

func (s *store) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	claims, err := auth.Parse(refreshToken, s.config.Auth.JWTSecret)
	if err != nil {
		return nil, domain.NewAuthError(domain.KindInvalidCredentials, "invalid refresh token")
	}
	if claims.Role != auth.RoleRefresh {
		return nil, domain.NewAuthError(domain.KindInvalidCredentials, "invalid token type")
	}

	user, err := s.profiles.Get(ctx, claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.NewAuthError(domain.KindNotFound, "user not found")
	}

	accessToken, err := auth.NewAccessToken(user.ID, user.Email, auth.RoleCustomer, s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	sess := &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken, // Same refresh token comes back
		ExpiresIn:    int64(s.config.Auth.AccessTokenTTL.Seconds()),
		User:         user.ToUserInfo(),
	}
	s.notify(sess)
	return sess, nil
}

func (s *store) ResendVerification(ctx context.Context, email string) error {
	user, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// Don't reveal whether the account exists
		return nil
	}
	if user.EmailVerified {
		return domain.NewAuthError(domain.KindValidation, "account is already verified")
	}

	verifyToken := uuid.NewString()
	expiresAt := time.Now().Add(s.config.Auth.EmailVerificationTTL)

	if err := s.verify.CreateEmailVerification(ctx, user.ID, verifyToken, expiresAt); err != nil {
		return fmt.Errorf("failed to create verification token: %w", err)
	}

	verifyURL := s.buildVerificationURL(verifyToken)
	if err := s.mailer.SendVerificationEmail(user.Email, user.FullName, verifyURL, verifyToken); err != nil {
		logger.ErrorContext(ctx, "Failed to send verification email", "error", err, "user_id", user.ID)
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	return nil
}

func (s *store) RequestPasswordReset(ctx context.Context, req *domain.PasswordResetRequest) error {
	req.Normalize()

	user, err := s.profiles.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// Don't reveal whether the account exists
		return nil
	}

	resetToken := uuid.NewString()
	expiresAt := time.Now().Add(s.config.Auth.PasswordResetTTL)

	if err := s.verify.CreatePasswordReset(ctx, user.ID, resetToken, expiresAt); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	redirect := req.RedirectURL
	if redirect == "" {
		redirect = s.config.Site.BaseURL + "/reset-password"
	}
	resetURL := fmt.Sprintf("%s?token=%s", redirect, resetToken)

	if err := s.mailer.SendPasswordResetEmail(user.Email, user.FullName, resetURL); err != nil {
		logger.ErrorContext(ctx, "Failed to send password reset email", "error", err, "user_id", user.ID)
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	return nil
}

func (s *store) ConfirmPasswordReset(ctx context.Context, req *domain.PasswordResetConfirm) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return domain.NewAuthError(domain.KindValidation, err.Error())
	}

	user, err := s.profiles.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return domain.NewAuthError(domain.KindLinkInvalid, "invalid or expired reset token")
	}

	valid, err := s.verify.ConsumePasswordReset(ctx, user.ID, req.Token)
	if err != nil {
		return fmt.Errorf("failed to check reset token: %w", err)
	}
	if !valid {
		return domain.NewAuthError(domain.KindLinkInvalid, "invalid or expired reset token")
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.profiles.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

func (s *store) OnSessionChange(cb func(*domain.Session)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = cb

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *store) notify(sess *domain.Session) {
	s.mu.Lock()
	cbs := make([]func(*domain.Session), 0, len(s.listeners))
	for _, cb := range s.listeners {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(sess)
	}
}

func (s *store) mintSession(user *domain.User) (*domain.Session, error) {
	accessToken, err := auth.NewAccessToken(user.ID, user.Email, auth.RoleCustomer, s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := auth.NewAccessToken(user.ID, user.Email, auth.RoleRefresh, s.config.Auth.JWTSecret, s.config.Auth.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.Auth.AccessTokenTTL.Seconds()),
		User:         user.ToUserInfo(),
	}, nil
}

func (s *store) buildVerificationURL(token string) string {
	return fmt.Sprintf("%s/verify-email?code=%s", s.config.Site.BaseURL, token)
}
