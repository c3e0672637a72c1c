package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/Viktor-Kode/bloghub/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"net/http"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// FederatedIdentity - identity asserted by a federated provider
type FederatedIdentity struct {
	Email         string
	EmailVerified bool
}

// FederatedProvider - OAuth2 identity provider
type FederatedProvider interface {
	Name() models.Provider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (FederatedIdentity, error)
}

// GoogleProvider - sign in with Google
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider - creates provider for the OAuth client
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// Name - provider name stored with the user
func (g *GoogleProvider) Name() models.Provider {
	return models.ProviderGoogle
}

// AuthCodeURL - consent page URL
func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Exchange - trades the code for a token and reads the user's email
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (FederatedIdentity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return FederatedIdentity{}, err
	}

	resp, err := g.config.Client(ctx, token).Get(g.userInfoURL)
	if err != nil {
		return FederatedIdentity{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return FederatedIdentity{}, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err = json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return FederatedIdentity{}, err
	}
	return FederatedIdentity{Email: info.Email, EmailVerified: info.EmailVerified}, nil
}
