package userService

import (
	"context"
	"errors"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/store"
	"strings"
)

// Collection - document store collection holding users. Documents are keyed by normalized email
const Collection = "users"

const (
	fieldEmail        = "email"
	fieldProvider     = "provider"
	fieldPasswordHash = "passwordHash"
	fieldCreatedAt    = "createdAt"
)

var (
	// ErrUserExists - user with the given email is already registered
	ErrUserExists = errors.New("user already registered")
	// ErrNoSuchUser - user with the given email is not registered
	ErrNoSuchUser = errors.New("no such user")
)

// NormalizeEmail - emails are compared case insensitively
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Save - saves a new user. The check for an existing user and the insert are one atomic store call
func Save(ctx context.Context, s store.Store, user models.User) error {
	email := NormalizeEmail(user.Email)
	err := s.Create(ctx, Collection, email, store.Fields{
		fieldEmail:        email,
		fieldProvider:     string(user.Provider),
		fieldPasswordHash: user.PasswordHash,
		fieldCreatedAt:    store.ServerTimestamp,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrUserExists
	}
	return err
}

// GetByEmail - retrieves user with the given email
func GetByEmail(ctx context.Context, s store.Store, email string) (models.User, error) {
	document, err := s.Get(ctx, Collection, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrNoSuchUser
		}
		return models.User{}, err
	}

	user := models.User{Email: document.ID}
	if provider, ok := document.Fields[fieldProvider].(string); ok {
		user.Provider = models.Provider(provider)
	}
	if hash, ok := document.Fields[fieldPasswordHash].(string); ok {
		user.PasswordHash = hash
	}
	return user, nil
}

// ExistsByEmail - check if user with the given email exists
func ExistsByEmail(ctx context.Context, s store.Store, email string) (bool, error) {
	_, err := GetByEmail(ctx, s, email)
	if errors.Is(err, ErrNoSuchUser) {
		return false, nil
	}
	return err == nil, err
}

// SaveFederated - records a user that signed in with a federated identity.
// An already registered user with the same email is returned unchanged
func SaveFederated(ctx context.Context, s store.Store, email string, provider models.Provider) (models.User, error) {
	err := Save(ctx, s, models.User{Email: email, Provider: provider})
	if err != nil && !errors.Is(err, ErrUserExists) {
		return models.User{}, err
	}
	return GetByEmail(ctx, s, email)
}
