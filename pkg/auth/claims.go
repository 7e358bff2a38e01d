package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting an admin JWT.
type AccessTokenPayload struct {
	AdminID uuid.UUID
	Email   string
	Name    string
}

// AccessTokenClaims represents the typed JWT issued to back-office clients.
type AccessTokenClaims struct {
	AdminID uuid.UUID `json:"admin_id"`
	Email   string    `json:"email"`
	Name    string    `json:"name,omitempty"`
	jwt.RegisteredClaims
}
