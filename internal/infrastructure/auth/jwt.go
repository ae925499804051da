package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/tableledger/internal/domain"
)

// Claims represents the JWT claims. Roles are per restaurant and are not
// carried in the token.
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Service bool   `json:"svc,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts the claims into the acting identity.
func (c *Claims) Principal() domain.Principal {
	return domain.Principal{
		UserID:  c.UserID,
		Email:   c.Email,
		Service: c.Service,
	}
}

// JWTManager manages JWT token creation and validation
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	issuer        string
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		issuer:        "tableledger",
	}
}

// Generate issues a token for a principal. Service principals are used by
// schedulers and sync jobs.
func (m *JWTManager) Generate(principal domain.Principal) (string, error) {
	if principal.UserID == "" {
		return "", domain.ErrInvalidToken
	}

	now := time.Now()
	claims := Claims{
		UserID:  principal.UserID,
		Email:   principal.Email,
		Service: principal.Service,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   principal.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify verifies a JWT token and returns the claims
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithIssuedAt(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredToken
		}
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}
