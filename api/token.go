package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// IssueToken signs an HS256 token for userID that an Auth built from the same
// shared-secret config accepts until ttl has passed.
func IssueToken(cfg AuthConfig, userID string, ttl time.Duration, now time.Time) (string, error) {
	if cfg.SharedSecret == "" {
		return "", errors.New("shared secret must be set")
	}
	if userID == "" {
		return "", errors.New("user id must be set")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if cfg.Audience != "" {
		claims["aud"] = cfg.Audience
	}
	if cfg.Issuer != "" {
		claims["iss"] = cfg.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.SharedSecret))
}
