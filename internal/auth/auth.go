// Package auth provides user accounts and JWT session cookies for PrepVox.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/prepvox/PrepVox/internal/models"
	"github.com/prepvox/PrepVox/internal/store"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "prepvox_session"

// DefaultTokenTTL is the session lifetime when no override is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Opts holds configuration options for the auth service.
type Opts struct {
	Secret   string
	TokenTTL time.Duration
}

// Option defines a functional option for configuring the auth service.
type Option func(*Opts)

// WithSecret sets the token signing secret.
func WithSecret(secret string) Option {
	return func(o *Opts) {
		o.Secret = secret
	}
}

// WithTokenTTL overrides the session lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.TokenTTL = ttl
	}
}

// Service implements sign-up, sign-in, and request authentication.
type Service struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
}

// NewService creates an auth service. A signing secret is required.
func NewService(st store.Store, opts ...Option) (*Service, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Secret == "" {
		slog.Error("Auth service signing secret not set")
		return nil, fmt.Errorf("auth signing secret not set")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &Service{store: st, secret: []byte(cfg.Secret), ttl: cfg.TokenTTL}, nil
}

// SignUp registers a new account with a bcrypt password hash.
func (s *Service) SignUp(name, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	existing, err := s.store.GetUserByEmail(email)
	if err != nil {
		slog.Error("Auth SignUp: email lookup failed", "error", err)
		return nil, err
	}
	if existing != nil {
		slog.Warn("Auth SignUp: email already registered", "email", email)
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := models.User{Name: name, Email: email, PasswordHash: string(hash)}
	id, err := s.store.CreateUser(user)
	if err != nil {
		slog.Error("Auth SignUp: user creation failed", "error", err, "email", email)
		return nil, err
	}
	user.ID = id
	slog.Info("Auth SignUp: user created", "userID", id)
	return &user, nil
}

// SignIn verifies credentials and issues a signed session token.
func (s *Service) SignIn(email, password string) (string, *models.User, error) {
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		slog.Error("Auth SignIn: email lookup failed", "error", err)
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("Auth SignIn: password mismatch", "userID", user.ID)
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	slog.Info("Auth SignIn: session issued", "userID", user.ID)
	return token, user, nil
}

// issueToken signs a session token for the user.
func (s *Service) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a session token and returns the user id.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// SessionCookie builds the HttpOnly cookie carrying the session token.
func (s *Service) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl / time.Second),
	}
}

// Authenticate resolves the request's session cookie to a user, or nil when
// the request carries no valid session.
func (s *Service) Authenticate(r *http.Request) (*models.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, nil
	}
	userID, err := s.VerifyToken(cookie.Value)
	if err != nil {
		slog.Debug("Auth Authenticate: invalid session token")
		return nil, nil
	}
	return s.store.GetUserByID(userID)
}

// contextKey is a private type for context values.
type contextKey struct{}

var userContextKey contextKey

// UserFromContext returns the authenticated user injected by RequireAuth.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// RequireAuth rejects unauthenticated requests with a 401 envelope and
// injects the user into the request context otherwise.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Authenticate(r)
		if err != nil {
			slog.Error("Auth RequireAuth: user lookup failed", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if user == nil {
			slog.Debug("Auth RequireAuth: unauthenticated request", "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"status":"error","message":"authentication required"}`))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
