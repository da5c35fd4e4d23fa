package utils

import (
	"errors" // Error values
	"time"   // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// Service token issuer and audience. Only the application tier mints these tokens.
const (
	ServiceIssuer   = "bank-app"
	ServiceAudience = "bank-ledger"
)

// ErrMissingSecret is returned when no signing secret is configured
var ErrMissingSecret = errors.New("service secret is not configured")

// ServiceClaims are the claims of a service-to-service token
type ServiceClaims struct {
	RequestID            string `json:"rid,omitempty"` // Request that caused the call, for log correlation
	jwt.RegisteredClaims        // Standard JWT claims
}

// GenerateServiceToken creates a short-lived HS256 token the ledger tier accepts
func GenerateServiceToken(secret, requestID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	now := time.Now()
	claims := ServiceClaims{
		RequestID: requestID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ServiceIssuer,
			Audience:  jwt.ClaimStrings{ServiceAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)), // Token expires after ttl
			IssuedAt:  jwt.NewNumericDate(now),          // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseServiceToken parses and validates a service token string
func ParseServiceToken(tokenStr, secret string) (*ServiceClaims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	token, err := jwt.ParseWithClaims(tokenStr, &ServiceClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), // Reject alg switching
		jwt.WithIssuer(ServiceIssuer),
		jwt.WithAudience(ServiceAudience),
		jwt.WithExpirationRequired(),
	)
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	if claims, ok := token.Claims.(*ServiceClaims); ok && token.Valid {
		return claims, nil // Return claims if valid
	}
	// Return error if token is invalid
	return nil, jwt.ErrSignatureInvalid
}
