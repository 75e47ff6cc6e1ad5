// Package config loads service configuration from the environment, an
// optional .env file and command-line flags.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Keys understood by Load. They double as environment variable names.
const (
	KeyMongoURI                = "MONGODB_URI"
	KeyMongoDatabase           = "MONGODB_DATABASE"
	KeyJWTSecret               = "JWT_SECRET"
	KeyJWTKeys                 = "JWT_KEYS" // kid:secret,kid2:secret2
	KeyJWTActiveKid            = "JWT_ACTIVE_KID"
	KeyJWTTTL                  = "JWT_TTL"
	KeyPort                    = "PORT"
	KeyHealthPort              = "HEALTH_PORT"
	KeyRateLimitRPM            = "RATE_LIMIT_RPM"
	KeyCORSOrigin              = "CORS_ORIGIN"
	KeyGroqAPIKey              = "GROQ_API_KEY"
	KeyGroqBaseURL             = "GROQ_BASE_URL"
	KeyGroqModel               = "GROQ_MODEL"
	KeyGatewayTimeout          = "GATEWAY_TIMEOUT"
	KeySnapshotMaxTransactions = "SNAPSHOT_MAX_TRANSACTIONS"
	KeyLogLevel                = "LOG_LEVEL"
	KeyLogDevelopment          = "LOG_DEVELOPMENT"
)

// Config is the resolved service configuration.
type Config struct {
	MongoURI      string
	MongoDatabase string

	JWTSecret    string
	JWTKeys      map[string]string
	JWTActiveKid string
	JWTTTL       time.Duration

	Port         string
	HealthPort   string
	RateLimitRPM int
	CORSOrigin   string

	GroqAPIKey     string
	GroqBaseURL    string
	GroqModel      string
	GatewayTimeout time.Duration

	SnapshotMaxTransactions int

	LogLevel       string
	LogDevelopment bool
}

// LoadDotEnv loads variables from the given .env files (or ./.env) into the
// process environment. A missing file is reported but is not fatal for callers.
func LoadDotEnv(files ...string) error {
	return godotenv.Load(files...)
}

// New returns a viper instance with defaults set and environment binding on.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyMongoDatabase, "finance_db")
	v.SetDefault(KeyJWTTTL, "24h")
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyHealthPort, "50051")
	v.SetDefault(KeyRateLimitRPM, 10)
	v.SetDefault(KeyCORSOrigin, "*")
	v.SetDefault(KeyGroqBaseURL, "https://api.groq.com/openai/v1")
	v.SetDefault(KeyGroqModel, "llama3-8b-8192")
	v.SetDefault(KeyGatewayTimeout, "30s")
	v.SetDefault(KeySnapshotMaxTransactions, 200)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogDevelopment, false)
	v.AutomaticEnv()
	return v
}

// Load resolves and validates a Config from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		MongoURI:                v.GetString(KeyMongoURI),
		MongoDatabase:           v.GetString(KeyMongoDatabase),
		JWTSecret:               v.GetString(KeyJWTSecret),
		JWTActiveKid:            v.GetString(KeyJWTActiveKid),
		JWTTTL:                  v.GetDuration(KeyJWTTTL),
		Port:                    v.GetString(KeyPort),
		HealthPort:              v.GetString(KeyHealthPort),
		RateLimitRPM:            v.GetInt(KeyRateLimitRPM),
		CORSOrigin:              v.GetString(KeyCORSOrigin),
		GroqAPIKey:              v.GetString(KeyGroqAPIKey),
		GroqBaseURL:             v.GetString(KeyGroqBaseURL),
		GroqModel:               v.GetString(KeyGroqModel),
		GatewayTimeout:          v.GetDuration(KeyGatewayTimeout),
		SnapshotMaxTransactions: v.GetInt(KeySnapshotMaxTransactions),
		LogLevel:                v.GetString(KeyLogLevel),
		LogDevelopment:          v.GetBool(KeyLogDevelopment),
	}

	if cfg.MongoURI == "" {
		return nil, errors.Errorf("%s must be set", KeyMongoURI)
	}

	keys, err := ParseJWTKeys(v.GetString(KeyJWTKeys))
	if err != nil {
		return nil, err
	}
	cfg.JWTKeys = keys
	if len(cfg.JWTKeys) == 0 && cfg.JWTSecret == "" {
		return nil, errors.Errorf("either %s or %s must be set", KeyJWTSecret, KeyJWTKeys)
	}
	if len(cfg.JWTKeys) > 0 {
		if _, ok := cfg.JWTKeys[cfg.JWTActiveKid]; !ok {
			return nil, errors.Errorf("%s %q is not present in %s", KeyJWTActiveKid, cfg.JWTActiveKid, KeyJWTKeys)
		}
	}

	if cfg.JWTTTL <= 0 {
		return nil, errors.Errorf("%s must be positive", KeyJWTTTL)
	}
	if cfg.RateLimitRPM <= 0 {
		cfg.RateLimitRPM = 10
	}
	if cfg.SnapshotMaxTransactions <= 0 {
		cfg.SnapshotMaxTransactions = 200
	}
	return cfg, nil
}

// ParseJWTKeys parses "kid:secret" pairs separated by commas.
func ParseJWTKeys(raw string) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.Errorf("invalid %s entry: %s", KeyJWTKeys, p)
		}
		keys[parts[0]] = parts[1]
	}
	return keys, nil
}
