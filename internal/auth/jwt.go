package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// Claims embeds the active-session token issued at login. The token is
// checked against the active_sessions table on every request, so a
// later login on another device invalidates this credential without a
// revocation list.
type Claims struct {
	UserID       uint64 `json:"user_id"`
	SessionToken string `json:"session_token"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfileID    uint64 `json:"profile_id"`
	ProfileName  string `json:"profile_name"`
	jwt.RegisteredClaims
}

func SignJWT(claims Claims, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == 0 || claims.SessionToken == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
