package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/suPer8Hu/kbchat/internal/common"
)

type Claims struct {
	UserID uint64 `json:"uid"`
	jwt.RegisteredClaims
}

// SignJWT issues the session token handed back on register and login.
// Nothing else in the service verifies it; clients treat it as opaque.
func SignJWT(userID uint64, secret string, ttl time.Duration) (string, error) {
	jti, err := common.NewULID()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}
