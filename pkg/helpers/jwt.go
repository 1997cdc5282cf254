package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager handles generation and validation of JWT tokens
type JWTManager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}
}

// Token types carried in the typ claim.
const (
	AccessTokenType  = "access"
	RefreshTokenType = "refresh"
)

// Claims identify the user a token was issued to and what the token is for.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenSubject is the identity embedded in issued tokens.
type TokenSubject struct {
	UserID   int64
	Username string
	Email    string
}

func (m *JWTManager) GenerateAccessToken(sub TokenSubject) (string, time.Time, error) {
	return sign(sub, AccessTokenType, m.AccessTTL, m.AccessSecret)
}

func (m *JWTManager) GenerateRefreshToken(sub TokenSubject) (string, time.Time, error) {
	return sign(sub, RefreshTokenType, m.RefreshTTL, m.RefreshSecret)
}

func sign(sub TokenSubject, typ string, ttl time.Duration, secret []byte) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := &Claims{
		UserID:   sub.UserID,
		Username: sub.Username,
		Email:    sub.Email,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(secret)
	return s, exp, err
}

func (m *JWTManager) ParseAccessToken(tokenStr string) (*Claims, error) {
	return parseToken(tokenStr, AccessTokenType, m.AccessSecret)
}

func (m *JWTManager) ParseRefreshToken(tokenStr string) (*Claims, error) {
	return parseToken(tokenStr, RefreshTokenType, m.RefreshSecret)
}

// ErrWrongTokenType is returned when a validly signed token was issued for another purpose.
var ErrWrongTokenType = errors.New("wrong token type")

func parseToken(tokenStr, typ string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
