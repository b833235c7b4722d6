package utils

import (
	"errors"
	"fmt"
	"time"

	"revattest/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "revattest"

// IssueServiceToken signs an HS256 token for subject with the given scopes.
func IssueServiceToken(secret, subject string, scopes []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("service JWT secret not configured")
	}
	now := time.Now()
	claims := models.ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   subject,
		},
		Scopes: scopes,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseServiceToken validates signature, algorithm, issuer, and expiry.
func ParseServiceToken(secret, tokenString string) (*models.ServiceClaims, error) {
	claims := &models.ServiceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
