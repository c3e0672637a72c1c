package session

import (
	"fmt"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/auth0/go-jwt-middleware"
	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
	"log"
	"net/http"
)

const (
	// TokenCookieName - cookie carrying the session token for browser navigation
	TokenCookieName = "Session"
	// FingerprintCookieName - HttpOnly cookie carrying the raw fingerprint hashed into the token
	FingerprintCookieName = "Secure-Fgp"

	jwtUserProperty = "user"
)

// Resolver - resolves the session state of a request
type Resolver interface {
	Resolve(w http.ResponseWriter, r *http.Request) (State, *http.Request)
}

// TokenResolver - resolves the session from a JWT token (Authorization header or session cookie)
// and the fingerprint cookie
type TokenResolver struct {
	jwtMiddleware *jwtmiddleware.JWTMiddleware
	logInfo       *log.Logger
	logError      *log.Logger
}

func fromTokenCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil {
		return "", nil
	}
	return cookie.Value, nil
}

// NewTokenResolver - creates resolver checking tokens signed with signingKey
func NewTokenResolver(signingKey []byte, logInfo, logError *log.Logger) *TokenResolver {
	return &TokenResolver{
		jwtMiddleware: jwtmiddleware.New(jwtmiddleware.Options{
			ValidationKeyGetter: func(token *jwt.Token) (interface{}, error) {
				return signingKey, nil
			},
			// the guard decides how to respond
			ErrorHandler:        func(w http.ResponseWriter, r *http.Request, err string) {},
			UserProperty:        jwtUserProperty,
			CredentialsOptional: true,
			Extractor:           jwtmiddleware.FromFirst(jwtmiddleware.FromAuthHeader, fromTokenCookie),
			SigningMethod:       jwt.SigningMethodHS256,
		}),
		logInfo:  logInfo,
		logError: logError,
	}
}

// Resolve - returns state with the session, or without it when the token is missing or invalid
func (res *TokenResolver) Resolve(w http.ResponseWriter, r *http.Request) (State, *http.Request) {
	// CheckJWT replaces *r with a copy carrying the parsed token
	checked := r.Clone(r.Context())
	if err := res.jwtMiddleware.CheckJWT(w, checked); err != nil {
		res.logInfo.Printf("Error checking JWT Token: %s", err)
		return State{}, r
	}

	token, ok := checked.Context().Value(jwtUserProperty).(*jwt.Token)
	if !ok {
		return State{}, r
	}

	s, err := sessionFromToken(token, r)
	if err != nil {
		res.logInfo.Printf("Rejecting session: %s", err)
		return State{}, r
	}
	return State{Session: &s}, r.WithContext(WithSession(r.Context(), s))
}

func sessionFromToken(token *jwt.Token, r *http.Request) (models.Session, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Session{}, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	email, _ := claims["sub"].(string)
	if email == "" {
		return models.Session{}, fmt.Errorf("token without subject")
	}
	tokenFingerprint, _ := claims["fingerprint"].(string)
	provider, _ := claims["provider"].(string)

	fingerprintCookie, err := r.Cookie(FingerprintCookieName)
	if err != nil {
		return models.Session{}, fmt.Errorf("request missing fingerprint")
	}
	if err = bcrypt.CompareHashAndPassword([]byte(tokenFingerprint), []byte(fingerprintCookie.Value)); err != nil {
		return models.Session{}, fmt.Errorf("raw fingerprint does not match fingerprint containing in JWT Token")
	}

	return models.Session{Email: email, Provider: models.Provider(provider)}, nil
}

// Guard - single reusable session gate for handlers
type Guard struct {
	resolver    Resolver
	placeholder http.Handler
	logInfo     *log.Logger
}

// NewGuard - creates guard. Loading sessions are answered by placeholder
func NewGuard(resolver Resolver, placeholder http.Handler, logInfo *log.Logger) *Guard {
	if placeholder == nil {
		placeholder = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Loading...", http.StatusServiceUnavailable)
		})
	}
	return &Guard{
		resolver:    resolver,
		placeholder: placeholder,
		logInfo:     logInfo,
	}
}

// Require - serves next only when a session is present. onAbsent is served otherwise
func (g *Guard) Require(onAbsent, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, r := g.resolver.Resolve(w, r)
		switch Gate(state) {
		case Wait:
			g.placeholder.ServeHTTP(w, r)
		case RedirectToLogin:
			g.logInfo.Printf("No session for %s %s", r.Method, r.URL.Path)
			onAbsent.ServeHTTP(w, r)
		case Proceed:
			next.ServeHTTP(w, r)
		}
	})
}

// Optional - serves next in any case; the session, when present, is available through FromContext
func (g *Guard) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, r = g.resolver.Resolve(w, r)
		next.ServeHTTP(w, r)
	})
}

// RedirectTo - onAbsent handler for pages
func RedirectTo(path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, path, http.StatusSeeOther)
	})
}
