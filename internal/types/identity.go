package types

import (
	"github.com/golang-jwt/jwt/v5"
)

// Identity is an authenticated user's stable reference, supplied by the
// external identity provider. The pipeline uses it only as a storage
// partition key; the access token is never validated or refreshed here.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Picture     string `json:"picture"`
	AccessToken string `json:"-"`
}

// IdentityClaims mirrors the provider's ID-token payload.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}
