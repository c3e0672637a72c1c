package models

import (
	"github.com/dgrijalva/jwt-go"
)

// TokenClaims - represents JWT token claims. It extends jwt.StandardClaims struct
// Subject holds the user email
type TokenClaims struct {
	Provider    Provider `json:"provider"`
	Fingerprint string   `json:"fingerprint"`
	jwt.StandardClaims
}
