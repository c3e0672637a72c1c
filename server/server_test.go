package server

import (
	"bytes"
	"encoding/json"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/store/memory"
	"github.com/spf13/viper"
	"gotest.tools/assert"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for key, value := range env {
		t.Setenv(key, value)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	setEnv(t, map[string]string{"JWT_SECRET_KEY": "secret", "DB_DRIVER": "", "SERVER_PORT": "", "TOKEN_TTL": ""})

	config, err := LoadConfig()

	assert.NilError(t, err)
	assert.Equal(t, config.ServerPort, "8080")
	assert.Equal(t, config.DbDriver, DriverMemory)
	assert.Equal(t, config.TokenTTL, time.Hour)
	assert.Equal(t, string(config.JwtSecret), "secret")
	assert.Assert(t, !config.FederatedEnabled())
}

func TestLoadConfigFromEnv(t *testing.T) {
	setEnv(t, map[string]string{
		"JWT_SECRET_KEY":       "secret",
		"DB_DRIVER":            DriverPostgres,
		"DB_HOST":              "db",
		"DB_PORT":              "5433",
		"DB_USER":              "blog",
		"DB_PASSWORD":          "pass",
		"DB_NAME":              "blogdb",
		"TOKEN_TTL":            "30m",
		"BCRYPT_COST":          "12",
		"GOOGLE_CLIENT_ID":     "id",
		"GOOGLE_CLIENT_SECRET": "client-secret",
		"GOOGLE_REDIRECT_URL":  "http://localhost/api/user/oauth/google/callback",
	})

	config, err := LoadConfig()

	assert.NilError(t, err)
	assert.Equal(t, config.TokenTTL, 30*time.Minute)
	assert.Equal(t, config.BcryptCost, 12)
	assert.Equal(t, config.PostgresConnString(),
		"host=db port=5433 user=blog password=pass dbname=blogdb sslmode=disable")
	assert.Assert(t, config.FederatedEnabled())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET_KEY": "", "DB_DRIVER": DriverMemory}},
		{"unknown driver", map[string]string{"JWT_SECRET_KEY": "secret", "DB_DRIVER": "sqlite"}},
		{"mongo without uri", map[string]string{"JWT_SECRET_KEY": "secret", "DB_DRIVER": DriverMongo, "MONGO_URI": ""}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)
			_, err := LoadConfig()
			assert.Assert(t, err != nil)
		})
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	router, err := NewRouter(memory.NewStorage(), Config{JwtSecret: []byte("secret"), TokenTTL: time.Hour, BcryptCost: 4})
	assert.NilError(t, err)
	return router
}

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, httptest.NewRequest("GET", "/api/hc", nil))
	assert.Equal(t, w.Code, http.StatusOK)
}

func TestPagesRequireSession(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/dashboard", nil))
	assert.Equal(t, w.Code, http.StatusSeeOther)
	assert.Equal(t, w.Header().Get("Location"), "/login")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/user/posts/live", nil))
	assert.Equal(t, w.Code, http.StatusUnauthorized)
}

func TestSignedInUserCanPublish(t *testing.T) {
	router := newTestRouter(t)
	credentials := map[string]string{"email": "writer@example.com", "password": "password1"}
	body, err := json.Marshal(credentials)
	assert.NilError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/user/register", bytes.NewReader(body)))
	assert.Equal(t, w.Code, http.StatusOK)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/user/login", bytes.NewReader(body)))
	assert.Equal(t, w.Code, http.StatusOK)
	cookies := w.Result().Cookies()

	post, err := json.Marshal(models.CreatePostRequest{Title: "Hello", Content: "World"})
	assert.NilError(t, err)
	r := httptest.NewRequest("POST", "/api/posts", bytes.NewReader(post))
	for _, cookie := range cookies {
		r.AddCookie(cookie)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Equal(t, w.Code, http.StatusCreated)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/posts", nil))
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Assert(t, bytes.Contains(w.Body.Bytes(), []byte("Hello")))
}
