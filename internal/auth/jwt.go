package auth

import (
	"fmt"
	"time"

	"github.com/buscoapp/busco/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry is the token lifetime issued at login/registration.
const TokenExpiry = 7 * 24 * time.Hour

// Claims are the JWT claims carried by a bearer token.
type Claims struct {
	UserID      int64  `json:"user_id"`
	AccountType string `json:"account_type"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the given user.
func GenerateToken(secret string, user *model.User) (string, error) {
	claims := Claims{
		UserID:      user.ID,
		AccountType: user.AccountType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a bearer token, returning its claims.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
