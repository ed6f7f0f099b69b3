package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/cache"
	"github.com/tzedaka/maaser/internal/clock"
	"github.com/tzedaka/maaser/internal/metrics"
	"github.com/tzedaka/maaser/internal/model"
	"github.com/tzedaka/maaser/internal/repository"
)

// DefaultSessionTTL is how long an unused session stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// AuthStore is the persistence AuthService needs.
type AuthStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	SetUserPin(ctx context.Context, userID, pinHash string, at time.Time) error

	CreateSession(ctx context.Context, s *model.Session) error
	GetSessionsByPrefix(ctx context.Context, prefix string, now time.Time) ([]*model.Session, error)
	SetSessionPinVerified(ctx context.Context, id string, verified bool) error
	LockOtherSessions(ctx context.Context, userID, keepID string) (int64, error)
	TouchSession(ctx context.Context, id string, seenAt, expiresAt time.Time) error
	RevokeSession(ctx context.Context, id string, at time.Time) error
}

// AuthOptions tune AuthService.
type AuthOptions struct {
	SessionTTL           time.Duration
	PinAttemptsPerMinute int
	HashParams           auth.Params
}

// AuthService handles accounts, sessions and the security PIN.
type AuthService struct {
	store   AuthStore
	cache   SessionCache
	limiter RateLimiter
	clock   clock.Clock
	metrics metrics.Recorder
	logger  *slog.Logger
	opts    AuthOptions

	// decoyHash is verified against when the login email is unknown, so
	// both credential failures cost one argon2id run.
	decoyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(store AuthStore, sessionCache SessionCache, limiter RateLimiter, clk clock.Clock, logger *slog.Logger, recorder metrics.Recorder, opts AuthOptions) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.HashParams == (auth.Params{}) {
		opts.HashParams = auth.DefaultParams
	}
	decoy, err := auth.HashWithParams("maaser-decoy-password", opts.HashParams)
	if err != nil {
		logger.Error("failed to build decoy password hash", "error", err)
	}
	return &AuthService{
		store:     store,
		cache:     sessionCache,
		limiter:   limiter,
		clock:     clk,
		metrics:   recorder,
		logger:    logger.With("component", "auth"),
		opts:      opts,
		decoyHash: decoy,
	}
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// CreateAccount validates and stores a new user with default settings.
func (s *AuthService) CreateAccount(ctx context.Context, input RegisterInput) (*model.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if input.Password == "" {
		return nil, invalid("password", "is required")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}

	hash, err := auth.HashWithParams(input.Password, s.opts.HashParams)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	user := &model.User{
		ID:               newID(prefixUser, now),
		Name:             name,
		Email:            email,
		PasswordHash:     hash,
		MaaserPercentage: model.DefaultMaaserPercentage,
		ColorScheme:      model.DefaultColorScheme,
		ConnectedBanks:   []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.SessionResponse, error) {
	user, err := s.CreateAccount(ctx, input)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.issueSession(ctx, user)
}

// Login checks credentials and opens a new session.
// Unknown email and wrong password fail the same way and take the same time.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.SessionResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		s.metrics.IncAuthFailure("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = auth.VerifyPassword(password, s.decoyHash)
			s.metrics.IncAuthFailure("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.metrics.IncAuthFailure("invalid_credentials")
		s.logger.Warn("login failed", "user_id", user.ID, "reason", "invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, user)
}

// issueSession stores a new session for user and returns its token once.
func (s *AuthService) issueSession(ctx context.Context, user *model.User) (*model.SessionResponse, error) {
	token, err := auth.GenerateSessionTokenWithParams(s.opts.HashParams)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := s.clock.Now()
	session := &model.Session{
		ID:          newID(prefixSession, now),
		UserID:      user.ID,
		TokenHash:   token.Hash,
		TokenPrefix: token.Prefix,
		ExpiresAt:   now.Add(s.opts.SessionTTL),
		CreatedAt:   now,
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.cacheSession(ctx, &model.AuthContext{
		SessionID:   session.ID,
		TokenPrefix: session.TokenPrefix,
		UserID:      user.ID,
		HasPin:      user.HasSecurityPin(),
		CacheKey:    token.CacheKey,
		ExpiresAt:   session.ExpiresAt,
	})

	s.metrics.IncLogin()

	return &model.SessionResponse{
		Token:     token.Plaintext,
		ExpiresAt: session.ExpiresAt,
		User:      user.ToResponse(),
	}, nil
}

// Authenticate resolves a bearer token to its session.
// The cache is consulted first; a miss verifies the token hash against the
// stored sessions and extends the session's expiry.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.AuthContext, error) {
	prefix, err := auth.ParseSessionToken(token)
	if err != nil {
		s.metrics.IncAuthFailure("invalid_token")
		return nil, ErrUnauthenticated
	}

	now := s.clock.Now()
	cacheKey := auth.QuickHash(token)

	if s.cache != nil {
		cached, err := s.cache.GetAuthContext(ctx, cacheKey)
		if err == nil && cached != nil && now.Before(cached.ExpiresAt) {
			s.metrics.IncSessionCacheHit()
			return cached, nil
		}
	}
	s.metrics.IncSessionCacheMiss()

	candidates, err := s.store.GetSessionsByPrefix(ctx, prefix, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	var session *model.Session
	for _, c := range candidates {
		ok, err := auth.VerifyPassword(token, c.TokenHash)
		if err != nil {
			continue
		}
		if ok {
			session = c
			break
		}
	}
	if session == nil || !session.IsActive(now) {
		s.metrics.IncAuthFailure("invalid_token")
		return nil, ErrUnauthenticated
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	expiresAt := now.Add(s.opts.SessionTTL)
	if err := s.store.TouchSession(ctx, session.ID, now, expiresAt); err != nil {
		s.logger.Warn("failed to extend session", "session_id", session.ID, "error", err)
		expiresAt = session.ExpiresAt
	}

	authCtx := &model.AuthContext{
		SessionID:   session.ID,
		TokenPrefix: session.TokenPrefix,
		UserID:      session.UserID,
		PinVerified: session.PinVerified,
		HasPin:      user.HasSecurityPin(),
		CacheKey:    cacheKey,
		ExpiresAt:   expiresAt,
	}
	s.cacheSession(ctx, authCtx)

	return authCtx, nil
}

// GetSession returns the user and PIN state of the current session.
func (s *AuthService) GetSession(ctx context.Context, authCtx *model.AuthContext) (*model.SessionResponse, error) {
	user, err := s.Me(ctx, authCtx.UserID)
	if err != nil {
		return nil, err
	}
	return &model.SessionResponse{
		ExpiresAt:   authCtx.ExpiresAt,
		PinVerified: authCtx.PinVerified,
		User:        user.ToResponse(),
	}, nil
}

// Logout revokes the current session.
func (s *AuthService) Logout(ctx context.Context, authCtx *model.AuthContext) error {
	err := s.store.RevokeSession(ctx, authCtx.SessionID, s.clock.Now())
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.DeleteAuthContext(ctx, authCtx.CacheKey); err != nil {
			s.logger.Warn("failed to evict session", "session_id", authCtx.SessionID, "error", err)
		}
	}
	return nil
}

// Me returns the user behind a session.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return user, nil
}

// UpdateMe merges the provided settings into the user.
func (s *AuthService) UpdateMe(ctx context.Context, userID string, update model.UserUpdate) (*model.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, invalid("name", "must not be empty")
		}
		user.Name = name
	}
	if update.MaaserPercentage != nil {
		if !model.IsValidPercentage(*update.MaaserPercentage) {
			return nil, invalid("maaser_percentage", "must be between 1 and 100")
		}
		user.MaaserPercentage = *update.MaaserPercentage
	}
	if update.ColorScheme != nil {
		if !model.IsValidColorScheme(*update.ColorScheme) {
			return nil, invalid("color_scheme", "must be one of "+strings.Join(model.ValidColorSchemes, ", "))
		}
		user.ColorScheme = *update.ColorScheme
	}
	if update.SetBanks {
		user.ConnectedBanks = cleanList(update.ConnectedBanks)
	}

	user.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// SetSecurityPin creates the user's PIN, or changes it from a session that
// already passed the PIN gate. The session counts as verified afterwards.
func (s *AuthService) SetSecurityPin(ctx context.Context, authCtx *model.AuthContext, pin string) (*model.SessionResponse, error) {
	normalized, err := auth.NormalizePIN(pin)
	if err != nil {
		return nil, invalid("pin", err.Error())
	}

	user, err := s.Me(ctx, authCtx.UserID)
	if err != nil {
		return nil, err
	}
	changing := user.HasSecurityPin()
	if changing && !authCtx.PinVerified {
		return nil, ErrPinAlreadySet
	}

	hash, err := auth.HashWithParams(normalized, s.opts.HashParams)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}

	now := s.clock.Now()
	if err := s.store.SetUserPin(ctx, user.ID, hash, now); err != nil {
		return nil, fmt.Errorf("failed to store pin: %w", err)
	}
	if err := s.store.SetSessionPinVerified(ctx, authCtx.SessionID, true); err != nil {
		return nil, fmt.Errorf("failed to mark session verified: %w", err)
	}
	if changing {
		// Sessions unlocked with the old PIN must enter the new one.
		locked, err := s.store.LockOtherSessions(ctx, user.ID, authCtx.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock other sessions: %w", err)
		}
		s.logger.Info("security pin changed", "user_id", user.ID, "sessions_locked", locked)
	}

	// HasPin changed for every session of this user.
	s.invalidateUser(ctx, user.ID)

	user.PinHash = hash
	user.UpdatedAt = now
	s.logger.Info("security pin set", "user_id", user.ID)

	return &model.SessionResponse{
		ExpiresAt:   authCtx.ExpiresAt,
		PinVerified: true,
		User:        user.ToResponse(),
	}, nil
}

// VerifySecurityPin unlocks the session. Failed attempts are rate limited
// per user.
func (s *AuthService) VerifySecurityPin(ctx context.Context, authCtx *model.AuthContext, pin string) (*model.SessionResponse, error) {
	if s.limiter != nil && s.opts.PinAttemptsPerMinute > 0 {
		result, err := s.limiter.CheckRateLimit(ctx, cache.ScopePIN, authCtx.UserID, s.opts.PinAttemptsPerMinute, s.opts.PinAttemptsPerMinute)
		if err == nil && !result.Allowed {
			s.metrics.IncAuthFailure("pin_rate_limited")
			return nil, ErrTooManyAttempts
		}
	}

	user, err := s.Me(ctx, authCtx.UserID)
	if err != nil {
		return nil, err
	}
	if !user.HasSecurityPin() {
		return nil, ErrPinNotSet
	}

	ok, err := auth.VerifyPIN(pin, user.PinHash)
	if err != nil {
		return nil, fmt.Errorf("verify pin: %w", err)
	}
	if !ok {
		s.metrics.IncAuthFailure("pin_incorrect")
		s.logger.Warn("pin verification failed", "user_id", user.ID, "session_id", authCtx.SessionID)
		return nil, ErrIncorrectPin
	}

	if err := s.store.SetSessionPinVerified(ctx, authCtx.SessionID, true); err != nil {
		return nil, fmt.Errorf("failed to mark session verified: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.DeleteAuthContext(ctx, authCtx.CacheKey); err != nil {
			s.logger.Warn("failed to evict session", "session_id", authCtx.SessionID, "error", err)
		}
	}
	if s.limiter != nil {
		_ = s.limiter.ResetRateLimit(ctx, cache.ScopePIN, authCtx.UserID)
	}

	return &model.SessionResponse{
		ExpiresAt:   authCtx.ExpiresAt,
		PinVerified: true,
		User:        user.ToResponse(),
	}, nil
}

func (s *AuthService) cacheSession(ctx context.Context, authCtx *model.AuthContext) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetAuthContext(ctx, authCtx.CacheKey, authCtx); err != nil {
		s.logger.Warn("failed to cache session", "session_id", authCtx.SessionID, "error", err)
	}
}

func (s *AuthService) invalidateUser(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUserSessions(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate cached sessions", "user_id", userID, "error", err)
	}
}

// normalizeEmail lower-cases and validates a bare address.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.IndexByte(email, '@')+1:], ".") {
		return "", invalid("email", "must be a valid email address")
	}
	return email, nil
}
