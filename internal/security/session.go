package security

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	adminSubjectKey = "admin_subject"
	sessionIssuer   = "karten-melder"
)

// Credentials is the configured admin login
type Credentials struct {
	Username string
	Password string
}

// Session is an issued admin token
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionManager issues and verifies admin session tokens
type SessionManager struct {
	credentials Credentials
	secret      []byte
	ttl         time.Duration
	clock       clockwork.Clock
}

// NewSessionManager creates a session manager signing with secret
func NewSessionManager(credentials Credentials, secret string, ttl time.Duration, clock clockwork.Clock) *SessionManager {
	return &SessionManager{
		credentials: credentials,
		secret:      []byte(secret),
		ttl:         ttl,
		clock:       clock,
	}
}

// Login checks the credentials and issues a token
func (sm *SessionManager) Login(username, password string) (*Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(sm.credentials.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(sm.credentials.Password)) == 1
	if !userOK || !passOK {
		return nil, errors.NewUnauthorizedError("Invalid username or password")
	}

	now := sm.clock.Now()
	expiresAt := now.Add(sm.ttl)

	claims := jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    sessionIssuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(sm.secret)
	if err != nil {
		return nil, errors.NewInternalError("failed to sign session token", err)
	}

	return &Session{Token: tokenString, ExpiresAt: expiresAt.UTC()}, nil
}

// Validate parses tokenString and returns the admin subject
func (sm *SessionManager) Validate(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return sm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(sm.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid session token")
	}

	return claims.Subject, nil
}

// RequireAdmin rejects requests without a valid Bearer session token
func (sm *SessionManager) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			errors.Respond(c, errors.NewUnauthorizedError("Missing admin session"))
			return
		}

		subject, err := sm.Validate(strings.TrimSpace(tokenString))
		if err != nil {
			errors.Respond(c, errors.NewUnauthorizedError("Invalid or expired admin session"))
			return
		}

		c.Set(adminSubjectKey, subject)
		c.Next()
	}
}

// AdminSubject returns the authenticated admin name set by RequireAdmin
func AdminSubject(c *gin.Context) string {
	return c.GetString(adminSubjectKey)
}
