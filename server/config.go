package server

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"time"
)

// keys to access env variables
const (
	serverPortEnvKey         string = "server_port"
	dbDriverEnvKey           string = "db_driver"
	dbUserEnvKey             string = "db_user"
	dbPasswordEnvKey         string = "db_password"
	dbNameEnvKey             string = "db_name"
	dbHostEnvKey             string = "db_host"
	dbPortEnvKey             string = "db_port"
	mongoURIEnvKey           string = "mongo_uri"
	jwtSecretEnvKey          string = "jwt_secret_key"
	tokenTTLEnvKey           string = "token_ttl"
	bcryptCostEnvKey         string = "bcrypt_cost"
	googleClientIDEnvKey     string = "google_client_id"
	googleClientSecretEnvKey string = "google_client_secret"
	googleRedirectURLEnvKey  string = "google_redirect_url"
)

// document store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config - server settings read from the environment
type Config struct {
	ServerPort string

	DbDriver   string
	DbUser     string
	DbPassword string
	DbName     string
	DbHost     string
	DbPort     string
	MongoURI   string

	JwtSecret  []byte
	TokenTTL   time.Duration
	BcryptCost int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// LoadConfig - reads the optional .env file and binds env variables. Access them by the same key
func LoadConfig() (Config, error) {
	// a missing .env is fine, real env variables win over it
	_ = godotenv.Load()

	_ = viper.BindEnv(serverPortEnvKey, "SERVER_PORT")
	_ = viper.BindEnv(dbDriverEnvKey, "DB_DRIVER")
	_ = viper.BindEnv(dbUserEnvKey, "DB_USER")
	_ = viper.BindEnv(dbPasswordEnvKey, "DB_PASSWORD")
	_ = viper.BindEnv(dbNameEnvKey, "DB_NAME")
	_ = viper.BindEnv(dbHostEnvKey, "DB_HOST")
	_ = viper.BindEnv(dbPortEnvKey, "DB_PORT")
	_ = viper.BindEnv(mongoURIEnvKey, "MONGO_URI")
	_ = viper.BindEnv(jwtSecretEnvKey, "JWT_SECRET_KEY")
	_ = viper.BindEnv(tokenTTLEnvKey, "TOKEN_TTL")
	_ = viper.BindEnv(bcryptCostEnvKey, "BCRYPT_COST")
	_ = viper.BindEnv(googleClientIDEnvKey, "GOOGLE_CLIENT_ID")
	_ = viper.BindEnv(googleClientSecretEnvKey, "GOOGLE_CLIENT_SECRET")
	_ = viper.BindEnv(googleRedirectURLEnvKey, "GOOGLE_REDIRECT_URL")

	viper.SetDefault(serverPortEnvKey, "8080")
	viper.SetDefault(dbDriverEnvKey, DriverMemory)
	viper.SetDefault(dbHostEnvKey, "localhost")
	viper.SetDefault(dbPortEnvKey, "5432")
	viper.SetDefault(dbNameEnvKey, "bloghub")
	viper.SetDefault(tokenTTLEnvKey, time.Hour)

	config := Config{
		ServerPort:         viper.GetString(serverPortEnvKey),
		DbDriver:           viper.GetString(dbDriverEnvKey),
		DbUser:             viper.GetString(dbUserEnvKey),
		DbPassword:         viper.GetString(dbPasswordEnvKey),
		DbName:             viper.GetString(dbNameEnvKey),
		DbHost:             viper.GetString(dbHostEnvKey),
		DbPort:             viper.GetString(dbPortEnvKey),
		MongoURI:           viper.GetString(mongoURIEnvKey),
		JwtSecret:          []byte(viper.GetString(jwtSecretEnvKey)),
		TokenTTL:           viper.GetDuration(tokenTTLEnvKey),
		BcryptCost:         viper.GetInt(bcryptCostEnvKey),
		GoogleClientID:     viper.GetString(googleClientIDEnvKey),
		GoogleClientSecret: viper.GetString(googleClientSecretEnvKey),
		GoogleRedirectURL:  viper.GetString(googleRedirectURLEnvKey),
	}

	if len(config.JwtSecret) == 0 {
		return Config{}, fmt.Errorf("%s is not set", jwtSecretEnvKey)
	}
	switch config.DbDriver {
	case DriverMemory, DriverPostgres:
	case DriverMongo:
		if config.MongoURI == "" {
			return Config{}, fmt.Errorf("%s is required by the %s driver", mongoURIEnvKey, DriverMongo)
		}
	default:
		return Config{}, fmt.Errorf("unknown %s %q", dbDriverEnvKey, config.DbDriver)
	}
	return config, nil
}

// PostgresConnString - lib/pq connection string
func (c Config) PostgresConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DbHost, c.DbPort, c.DbUser, c.DbPassword, c.DbName)
}

// FederatedEnabled - whether Google sign in is configured
func (c Config) FederatedEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}
