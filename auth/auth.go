// Package auth - identity provider: email/password accounts, federated sign in and session tokens
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/service/userService"
	"github.com/Viktor-Kode/bloghub/session"
	"github.com/Viktor-Kode/bloghub/store"
	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
	"log"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidEmail - malformed email
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword - password length is out of range
	ErrInvalidPassword = errors.New("invalid password")
	// ErrWrongCredentials - no such user or password does not match
	ErrWrongCredentials = errors.New("wrong credentials")
	// ErrUserExists - email is already registered
	ErrUserExists = userService.ErrUserExists
	// ErrFederatedDisabled - no federated provider is configured
	ErrFederatedDisabled = errors.New("federated sign in is not configured")
	// ErrUnverifiedEmail - federated identity has no verified email
	ErrUnverifiedEmail = errors.New("federated identity email is not verified")
)

// constants for use in validator methods
const (
	// MinPwdLen - minimum length of user password
	MinPwdLen int = 8
	// MaxPwdLen - maximum length of user password
	MaxPwdLen int = 38
	// MaxEmailLen - maximum length of email
	MaxEmailLen int = 255

	// DefaultTokenTTL - lifetime of session token and fingerprint cookie
	DefaultTokenTTL = time.Hour
)

// Config - provider settings
type Config struct {
	SigningKey []byte
	TokenTTL   time.Duration
	// HashCost - bcrypt cost for passwords and fingerprints
	HashCost int
}

// Credentials - result of a successful sign in
type Credentials struct {
	Session     models.Session
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
}

// Provider - auth provider over the users collection of the document store
type Provider struct {
	store     store.Store
	config    Config
	federated FederatedProvider
	logInfo   *log.Logger
	logError  *log.Logger
	now       func() time.Time
}

// NewProvider - creates provider. federated may be nil
func NewProvider(s store.Store, config Config, federated FederatedProvider, logInfo, logError *log.Logger) *Provider {
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}
	if config.HashCost == 0 {
		config.HashCost = bcrypt.DefaultCost
	}
	return &Provider{
		store:     s,
		config:    config,
		federated: federated,
		logInfo:   logInfo,
		logError:  logError,
		now:       time.Now,
	}
}

// ValidateEmail - one '@', not at the edges, bounded length
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if strings.Count(email, "@") != 1 || len(email) > MaxEmailLen || email[0] == '@' || email[len(email)-1] == '@' {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword - checks password length
func ValidatePassword(password string) error {
	passwordLen := len(password)
	if passwordLen < MinPwdLen || passwordLen > MaxPwdLen {
		return ErrInvalidPassword
	}
	return nil
}

// Register - creates email/password account
func (p *Provider) Register(ctx context.Context, email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), p.config.HashCost)
	if err != nil {
		return err
	}

	p.logInfo.Printf("Registering user with email %s", email)
	return userService.Save(ctx, p.store, models.User{
		Email:        email,
		Provider:     models.ProviderPassword,
		PasswordHash: string(hashedPassword),
	})
}

// SignInWithPassword - checks credentials and issues a session
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (Credentials, error) {
	if err := ValidateEmail(email); err != nil {
		return Credentials{}, err
	}

	user, err := userService.GetByEmail(ctx, p.store, email)
	if err != nil {
		if errors.Is(err, userService.ErrNoSuchUser) {
			p.logInfo.Printf("Can not sign in: user with email %s does not exist", email)
			return Credentials{}, ErrWrongCredentials
		}
		return Credentials{}, err
	}
	if user.PasswordHash == "" {
		p.logInfo.Printf("Can not sign in: user %s has no password", user.Email)
		return Credentials{}, ErrWrongCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		p.logInfo.Printf("Inputted password by user %s does not match hashed one", user.Email)
		return Credentials{}, ErrWrongCredentials
	}

	return p.issue(models.Session{Email: user.Email, Provider: models.ProviderPassword})
}

// FederatedURL - where to send the browser to start federated sign in
func (p *Provider) FederatedURL(state string) (string, error) {
	if p.federated == nil {
		return "", ErrFederatedDisabled
	}
	return p.federated.AuthCodeURL(state), nil
}

// SignInWithFederated - completes federated sign in with the authorization code
func (p *Provider) SignInWithFederated(ctx context.Context, code string) (Credentials, error) {
	if p.federated == nil {
		return Credentials{}, ErrFederatedDisabled
	}

	identity, err := p.federated.Exchange(ctx, code)
	if err != nil {
		return Credentials{}, fmt.Errorf("federated exchange failed: %w", err)
	}
	if !identity.EmailVerified || ValidateEmail(identity.Email) != nil {
		return Credentials{}, ErrUnverifiedEmail
	}

	user, err := userService.SaveFederated(ctx, p.store, identity.Email, p.federated.Name())
	if err != nil {
		return Credentials{}, err
	}
	return p.issue(models.Session{Email: user.Email, Provider: p.federated.Name()})
}

// GenerateRandomString - url safe random string of 32 bytes
func GenerateRandomString() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

func (p *Provider) issue(s models.Session) (Credentials, error) {
	fingerprint, err := GenerateRandomString()
	if err != nil {
		return Credentials{}, err
	}
	hashedFingerprint, err := bcrypt.GenerateFromPassword([]byte(fingerprint), p.config.HashCost)
	if err != nil {
		return Credentials{}, err
	}

	expiresAt := p.now().Add(p.config.TokenTTL)
	claims := models.TokenClaims{
		Provider:    s.Provider,
		Fingerprint: string(hashedFingerprint),
	}
	claims.Subject = s.Email
	claims.IssuedAt = p.now().Unix()
	claims.ExpiresAt = expiresAt.Unix()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.config.SigningKey)
	if err != nil {
		return Credentials{}, err
	}

	p.logInfo.Printf("Token successfully generated for user %s", s.Email)
	return Credentials{Session: s, Token: token, Fingerprint: fingerprint, ExpiresAt: expiresAt}, nil
}

// SetCookies - sets fingerprint and session token cookies
// Both are Lax: they must arrive on the top level redirect back from a federated provider's consent page
func SetCookies(w http.ResponseWriter, credentials Credentials) {
	http.SetCookie(w, &http.Cookie{Name: session.FingerprintCookieName, Value: credentials.Fingerprint,
		SameSite: http.SameSiteLaxMode, HttpOnly: true, Expires: credentials.ExpiresAt, Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: session.TokenCookieName, Value: credentials.Token,
		SameSite: http.SameSiteLaxMode, HttpOnly: true, Expires: credentials.ExpiresAt, Path: "/"})
}

// SignOut - drops the session cookies. Tokens handed out in response bodies stay valid until they expire
func SignOut(w http.ResponseWriter) {
	for _, name := range []string{session.FingerprintCookieName, session.TokenCookieName} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true,
			SameSite: http.SameSiteLaxMode})
	}
}
