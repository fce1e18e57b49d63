// Package config loads runtime settings from the environment, with the
// defaults used in development. A .env file is honored when present.
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env          string
	Port         string
	MongoURI     string
	DatabaseName string

	JWTSecret       string
	TokenTTL        time.Duration
	CookieTTL       time.Duration
	BcryptCost      int
	HashWorkers     int
	ResetTokenTTL   time.Duration
	AllowedOrigins  []string
	AdminEmail      string
	AdminPassword   string
	GCSBucket       string
	CredentialsFile string
}

// Load reads the environment into a Config. Missing optional values fall
// back to development defaults; JWT_SECRET and MONGODB_URI have no safe
// default and stay empty when unset.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		MongoURI:        os.Getenv("MONGODB_URI"),
		DatabaseName:    getEnv("DATABASE_NAME", "trekbackend"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenTTL:        days("JWT_EXPIRES_IN_DAYS", 90),
		CookieTTL:       days("JWT_COOKIE_EXPIRES_IN_DAYS", 90),
		BcryptCost:      intEnv("BCRYPT_COST", 12),
		HashWorkers:     intEnv("HASH_WORKERS", runtime.NumCPU()),
		ResetTokenTTL:   minutes("RESET_TOKEN_TTL_MINUTES", 10),
		AdminEmail:      strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		GCSBucket:       os.Getenv("GCS_BUCKET"),
		CredentialsFile: os.Getenv("CREDENTIALS_FILE_LOCATION"),
	}

	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func days(key string, fallback int) time.Duration {
	return time.Duration(intEnv(key, fallback)) * 24 * time.Hour
}

func minutes(key string, fallback int) time.Duration {
	return time.Duration(intEnv(key, fallback)) * time.Minute
}
