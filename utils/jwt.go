package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crawlfrontier/frontier/config"
)

// GenerateJWT signs a token asserting subject as the caller's identity,
// used to authenticate operators against the admin/worker HTTP surface.
func GenerateJWT(subject string, expiryDuration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(expiryDuration).Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(config.GetJWTSecretKey()))
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateJWT verifies tokenString and returns its subject claim.
func ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return []byte(config.GetJWTSecretKey()), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenNotValidYet
	}
	subject, ok := claims["sub"].(string)
	if !ok {
		return "", jwt.ErrTokenMalformed
	}
	return subject, nil
}
