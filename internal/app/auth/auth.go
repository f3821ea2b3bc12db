// Package auth issues and validates the HS256 session tokens used by the
// HTTP API, and carries the authenticated principal through request
// contexts.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for unknown users or wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for tokens that fail validation.
	ErrInvalidToken = errors.New("invalid token")
)

// DefaultTokenTTL bounds the lifetime of issued tokens.
const DefaultTokenTTL = 24 * time.Hour

// User is one configured API user. Password is the plaintext from
// configuration and is bcrypt-hashed when the manager is built;
// PasswordHash may be supplied directly instead.
type User struct {
	Username     string `json:"username" yaml:"username"`
	Password     string `json:"-" yaml:"password"`
	PasswordHash string `json:"-" yaml:"password_hash"`
	Role         string `json:"role" yaml:"role"`
}

// Claims are the JWT claims carried by issued tokens.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Manager validates credentials and signs session tokens.
type Manager struct {
	secret []byte
	users  map[string]User
	ttl    time.Duration
}

// NewManager builds a manager from the configured users. Plaintext
// passwords are hashed immediately and never retained.
func NewManager(secret string, users []User) *Manager {
	byName := make(map[string]User, len(users))
	for _, u := range users {
		if u.Username == "" {
			continue
		}
		if u.PasswordHash == "" && u.Password != "" {
			if hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost); err == nil {
				u.PasswordHash = string(hashed)
			}
		}
		u.Password = ""
		byName[u.Username] = u
	}
	return &Manager{secret: []byte(secret), users: byName, ttl: DefaultTokenTTL}
}

// WithTTL overrides the lifetime of newly issued tokens. Non-positive
// values keep the current setting.
func (m *Manager) WithTTL(ttl time.Duration) *Manager {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// Login checks the credentials and returns a signed token with its claims.
func (m *Manager) Login(username, password string) (string, Claims, error) {
	u, ok := m.users[username]
	if !ok || u.PasswordHash == "" {
		return "", Claims{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", Claims{}, ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Issuer:    "calculator",
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return token, claims, nil
}

// Validate parses and verifies a token issued by Login.
func (m *Manager) Validate(tokenString string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
