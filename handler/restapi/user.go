package restapi

import (
	"encoding/json"
	"errors"
	"github.com/Viktor-Kode/bloghub/auth"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/session"
	"log"
	"net/http"
	"strings"
	"time"
)

// UserAPIHandler - environment container struct to declare all auth handlers as methods
type UserAPIHandler struct {
	provider *auth.Provider
	// onSignOut is called with the email of every session that signs out
	onSignOut func(email string)
	logInfo   *log.Logger
	logError  *log.Logger
}

// NewUserAPIHandler - creates handler. onSignOut may be nil
func NewUserAPIHandler(provider *auth.Provider, onSignOut func(email string), logInfo, logError *log.Logger) *UserAPIHandler {
	if onSignOut == nil {
		onSignOut = func(string) {}
	}
	return &UserAPIHandler{
		provider:  provider,
		onSignOut: onSignOut,
		logInfo:   logInfo,
		logError:  logError,
	}
}

// error codes for this API
var (
	// WrongCredentials - user inputs wrong password or email while logging in
	WrongCredentials = models.NewRequestErrorCode("WRONG_CREDENTIALS")
	// InvalidEmail - user inputs invalid email while registration or logging in
	InvalidEmail = models.NewRequestErrorCode("INVALID_EMAIL")
	// InvalidPassword - user inputs invalid password while registration
	InvalidPassword = models.NewRequestErrorCode("INVALID_PASSWORD")
	// UserAlreadyRegistered - user trying to register account while already registered
	UserAlreadyRegistered = models.NewRequestErrorCode("USER_ALREADY_REGISTERED")
	// FederatedSignInDisabled - no federated provider is configured
	FederatedSignInDisabled = models.NewRequestErrorCode("FEDERATED_SIGN_IN_DISABLED")
	// FederatedSignInFailed - federated provider rejected the sign in
	FederatedSignInFailed = models.NewRequestErrorCode("FEDERATED_SIGN_IN_FAILED")
)

// OAuthStateCookieName - cookie holding the state of a pending federated sign in
const OAuthStateCookieName = "OAuth-State"

// authErrorCode - maps auth provider errors to response status and error code
func authErrorCode(err error) (int, models.RequestErrorCode) {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest, InvalidEmail
	case errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusBadRequest, InvalidPassword
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusBadRequest, UserAlreadyRegistered
	case errors.Is(err, auth.ErrWrongCredentials):
		return http.StatusUnauthorized, WrongCredentials
	case errors.Is(err, auth.ErrFederatedDisabled):
		return http.StatusNotFound, FederatedSignInDisabled
	case errors.Is(err, auth.ErrUnverifiedEmail):
		return http.StatusUnauthorized, FederatedSignInFailed
	}
	return http.StatusInternalServerError, TechnicalError
}

// RegisterUserHandler - serves registration requests
func (api *UserAPIHandler) RegisterUserHandler() http.Handler {
	logInfo := api.logInfo
	logError := api.logError
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request models.RegistrationRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			RespondWithError(w, http.StatusBadRequest, BadRequestBody)
			return
		}

		email := strings.TrimSpace(request.Email)
		logInfo.Printf("Got new user registration request. Email: %s", email)

		if err := api.provider.Register(r.Context(), email, request.Password); err != nil {
			code, errorCode := authErrorCode(err)
			if code == http.StatusInternalServerError {
				logError.Printf("Error registering user %s: %s", email, err)
			} else {
				logInfo.Printf("Can't register user %s: %s", email, err)
			}
			RespondWithError(w, code, errorCode)
			return
		}

		logInfo.Printf("User registered. Email: %s", email)
		Respond(w, http.StatusOK)
	})
}

// LoginUserHandler - serves user login request
// Sends back the JWT token as payload and sets the fingerprint and token cookies
func (api *UserAPIHandler) LoginUserHandler() http.Handler {
	logInfo := api.logInfo
	logError := api.logError
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			RespondWithError(w, http.StatusBadRequest, BadRequestBody)
			return
		}

		email := strings.TrimSpace(request.Email)
		logInfo.Printf("Got new user login request. Email: %s", email)

		credentials, err := api.provider.SignInWithPassword(r.Context(), email, request.Password)
		if err != nil {
			code, errorCode := authErrorCode(err)
			if code == http.StatusInternalServerError {
				logError.Printf("Bad login: %s. Email: %s", err, email)
			} else {
				logInfo.Printf("Login failed: %s. Email: %s", err, email)
			}
			RespondWithError(w, code, errorCode)
			return
		}

		auth.SetCookies(w, credentials)
		logInfo.Printf("Successful login. Email: %s", email)
		RespondWithBody(w, http.StatusOK, credentials.Token)
	})
}

// LogoutUserHandler - drops session cookies
func (api *UserAPIHandler) LogoutUserHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := session.FromContext(r.Context()); ok {
			api.onSignOut(s.Email)
			api.logInfo.Printf("User signed out. Email: %s", s.Email)
		}
		auth.SignOut(w)
		Respond(w, http.StatusOK)
	})
}

// SessionHandler - responds with the current session. Requires session
func (api *UserAPIHandler) SessionHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		RespondWithBody(w, http.StatusOK, s)
	})
}

// FederatedLoginHandler - redirects to the federated provider consent page
func (api *UserAPIHandler) FederatedLoginHandler() http.Handler {
	logError := api.logError
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, err := auth.GenerateRandomString()
		if err != nil {
			logError.Printf("Error generating oauth state: %s", err)
			RespondWithError(w, http.StatusInternalServerError, TechnicalError)
			return
		}

		redirectURL, err := api.provider.FederatedURL(state)
		if err != nil {
			code, errorCode := authErrorCode(err)
			RespondWithError(w, code, errorCode)
			return
		}

		http.SetCookie(w, &http.Cookie{Name: OAuthStateCookieName, Value: state, Path: "/",
			HttpOnly: true, SameSite: http.SameSiteLaxMode, Expires: time.Now().Add(10 * time.Minute)})
		http.Redirect(w, r, redirectURL, http.StatusFound)
	})
}

// FederatedCallbackHandler - completes federated sign in and redirects to successPath
func (api *UserAPIHandler) FederatedCallbackHandler(successPath string) http.Handler {
	logInfo := api.logInfo
	logError := api.logError
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stateCookie, err := r.Cookie(OAuthStateCookieName)
		if err != nil || stateCookie.Value == "" || stateCookie.Value != r.FormValue("state") {
			logInfo.Print("Federated sign in rejected: state mismatch")
			RespondWithError(w, http.StatusBadRequest, InvalidRequest)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: OAuthStateCookieName, Value: "", Path: "/", MaxAge: -1})

		credentials, err := api.provider.SignInWithFederated(r.Context(), r.FormValue("code"))
		if err != nil {
			code, errorCode := authErrorCode(err)
			if code == http.StatusInternalServerError {
				logError.Printf("Federated sign in failed: %s", err)
				code, errorCode = http.StatusBadGateway, FederatedSignInFailed
			}
			RespondWithError(w, code, errorCode)
			return
		}

		auth.SetCookies(w, credentials)
		logInfo.Printf("Successful federated login. Email: %s", credentials.Session.Email)
		http.Redirect(w, r, successPath, http.StatusSeeOther)
	})
}
