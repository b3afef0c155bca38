package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

// Claims represents JWT claims with token type, principal id and role.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID  `json:"user_id"`
	Role      model.Role `json:"role"`
	TokenType string     `json:"typ"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey string
	now       func() time.Time
}

// NewJWT creates a new JWT token manager with the provided secret key.
func NewJWT(secretKey string) *JWT {
	return &JWT{secretKey: secretKey, now: time.Now}
}

var _ model.TokenManager = (*JWT)(nil)

const (
	accessTTL  = 15 * time.Minute
	typeAccess = "access"
)

// GenerateAccessToken creates a short-lived access token for principal.
func (j *JWT) GenerateAccessToken(principal model.Principal) (string, error) {
	if !validRole(principal.Role) {
		return "", fmt.Errorf("unknown role %q", principal.Role)
	}

	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL)),
		},
		UserID:    principal.ID,
		Role:      principal.Role,
		TokenType: typeAccess,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ParseAccessToken validates an access token and extracts its principal.
func (j *JWT) ParseAccessToken(tokenString string) (model.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return model.Principal{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	if !token.Valid {
		return model.Principal{}, fmt.Errorf("access token is invalid")
	}
	if claims.TokenType != typeAccess {
		return model.Principal{}, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	if claims.UserID == uuid.Nil {
		return model.Principal{}, fmt.Errorf("access token has no subject")
	}
	if !validRole(claims.Role) {
		return model.Principal{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	return model.Principal{ID: claims.UserID, Role: claims.Role}, nil
}

func validRole(role model.Role) bool {
	switch role {
	case model.RoleOwner, model.RoleHeir, model.RoleAdmin:
		return true
	}
	return false
}
