package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("identity: password must be at least 8 characters")
)

// DefaultSessionTTL bounds how long a session stays valid without re-login.
const DefaultSessionTTL = 24 * time.Hour

// Store is the session store: it owns identity creation, password sign-in,
// sign-out and current-user resolution.
type Store struct {
	repo        Repository
	sessions    SessionRegistry
	secret      []byte
	sessionTTL  time.Duration
	idGenerator func() string
	now         func() time.Time
}

// NewStore creates a session store signing tokens with secret.
func NewStore(repo Repository, sessions SessionRegistry, secret string) *Store {
	return &Store{
		repo:        repo,
		sessions:    sessions,
		secret:      []byte(secret),
		sessionTTL:  DefaultSessionTTL,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Store) WithSessionTTL(ttl time.Duration) *Store {
	if ttl > 0 {
		s.sessionTTL = ttl
	}
	return s
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// AdminCreateUser creates an identity without a confirmation round-trip:
// server-side creation is trusted as proof of email ownership.
func (s *Store) AdminCreateUser(ctx context.Context, params CreateUserParams) (Identity, error) {
	if len(params.Password) < 8 {
		return Identity{}, ErrWeakPassword
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return Identity{}, fmt.Errorf("identity: email is required")
	}

	meta := map[string]string{}
	for k, v := range params.Metadata {
		meta[k] = v
	}
	if meta[MetaFullName] == "" {
		return Identity{}, fmt.Errorf("identity: full name is required")
	}
	role := Role(strings.TrimSpace(meta[MetaRole]))
	if role == "" {
		role = RoleBuyer
	}
	if !isValidRole(role) {
		return Identity{}, fmt.Errorf("identity: invalid role %q", role)
	}
	meta[MetaRole] = string(role)

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: hash password: %w", err)
	}

	return s.repo.CreateIdentity(ctx, CreateIdentityParams{
		Email:          email,
		PasswordHash:   string(passwordHash),
		EmailConfirmed: params.EmailConfirm,
		Metadata:       meta,
	})
}

// SignInWithPassword authenticates the credentials and establishes a session.
// The returned token is the bearer proof handed to the client.
func (s *Store) SignInWithPassword(ctx context.Context, email, password string) (Session, string, error) {
	ident, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, "", ErrInvalidCredentials
		}
		return Session{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)); err != nil {
		return Session{}, "", ErrInvalidCredentials
	}

	sess := Session{
		ID:         s.idGenerator(),
		IdentityID: ident.ID,
		ExpiresAt:  s.now().Add(s.sessionTTL),
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return Session{}, "", err
	}

	token, err := s.signToken(sess, ident.Role())
	if err != nil {
		return Session{}, "", fmt.Errorf("identity: sign token: %w", err)
	}

	return sess, token, nil
}

// SignOut revokes the session behind token. Tokens that are malformed,
// expired, or already signed out are treated as a no-op.
func (s *Store) SignOut(ctx context.Context, token string) error {
	sid, _, err := s.parseToken(token)
	if err != nil {
		return nil
	}
	return s.sessions.Delete(ctx, sid)
}

// GetUser resolves the identity behind token, requiring a live registered
// session. Returns ErrNoSession when the token is absent, invalid, or revoked.
func (s *Store) GetUser(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoSession
	}

	sid, identityID, err := s.parseToken(token)
	if err != nil {
		return Identity{}, ErrNoSession
	}

	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return Identity{}, err
	}
	if sess.IdentityID != identityID {
		return Identity{}, ErrNoSession
	}

	return s.repo.GetByID(ctx, identityID)
}

func (s *Store) signToken(sess Session, role Role) (string, error) {
	claims := jwt.MapClaims{
		"sid":  sess.ID,
		"sub":  sess.IdentityID,
		"role": string(role),
		"exp":  sess.ExpiresAt.Unix(),
		"iat":  s.now().Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Store) parseToken(tokenString string) (sid, identityID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("identity: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("identity: invalid token")
	}

	sid, ok = claims["sid"].(string)
	if !ok || sid == "" {
		return "", "", fmt.Errorf("identity: invalid sid in token")
	}
	identityID, ok = claims["sub"].(string)
	if !ok || identityID == "" {
		return "", "", fmt.Errorf("identity: invalid sub in token")
	}

	return sid, identityID, nil
}

func isValidRole(role Role) bool {
	switch role {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	default:
		return false
	}
}
