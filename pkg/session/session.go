package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Role is the typed staff role carried in a session
type Role string

const (
	RoleAdmin Role = "admin"
	RoleChef  Role = "chef"
	RoleStaff Role = "staff"
)

// ParseRole converts a stored role name into a Role.
func ParseRole(name string) (Role, error) {
	switch r := Role(name); r {
	case RoleAdmin, RoleChef, RoleStaff:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"

	contextKey = "session"
)

// Session identifies the signed-in user of a request
type Session struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Claims is the JWT payload
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

// Tokens is what a successful login or refresh returns
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Manager signs and verifies session tokens
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewManager creates a manager with 15 minute access and 7 day refresh tokens.
func NewManager(secret string) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
		now:        time.Now,
	}
}

// Issue signs an access and refresh token for s.
func (m *Manager) Issue(s Session) (Tokens, error) {
	access, err := m.sign(s, kindAccess, m.accessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := m.sign(s, kindRefresh, m.refreshTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

func (m *Manager) sign(s Session, kind string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:   s.UserID,
		Username: s.Username,
		Role:     s.Role,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// ParseAccess validates an access token.
func (m *Manager) ParseAccess(token string) (Session, error) {
	return m.parse(token, kindAccess)
}

// ParseRefresh validates a refresh token.
func (m *Manager) ParseRefresh(token string) (Session, error) {
	return m.parse(token, kindRefresh)
}

func (m *Manager) parse(raw, kind string) (Session, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidToken
	}
	if claims.Kind != kind {
		return Session{}, ErrInvalidToken
	}
	role, err := ParseRole(string(claims.Role))
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	return Session{UserID: claims.UserID, Username: claims.Username, Role: role}, nil
}

// Set stores s on the request context.
func Set(c *gin.Context, s Session) {
	c.Set(contextKey, s)
}

// From returns the session of the request, if any.
func From(c *gin.Context) (Session, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}
