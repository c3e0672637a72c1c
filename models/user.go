package models

// Provider - represents identity provider that authenticated the user
type Provider string

// identity providers
const (
	ProviderPassword = Provider("password")
	ProviderGoogle   = Provider("google")
)

// User - represents registered user
// PasswordHash is empty for users that signed in with a federated identity only
type User struct {
	Email        string
	Provider     Provider
	PasswordHash string
}

// Session - represents authenticated identity of the current user
type Session struct {
	Email    string   `json:"email"`
	Provider Provider `json:"provider"`
}

// LoginRequest - represents credentials that user inputs on login page.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegistrationRequest - represents credentials that user inputs on registration page.
type RegistrationRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
