package common

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	DevEnv  = "dev"
	TestEnv = "test"
	ProdEnv = "prod"
)

type Config struct {
	Env           string
	Port          string
	DatabaseURL   string
	SessionSecret string
	MediaDir      string
	CacheDir      string
	CookieSecure  bool
	SiteURL       string // absolute base for sitemap links
}

// LoadConfig reads the .env files for the current APP_ENV and then the process
// environment. godotenv never overrides a variable that is already set, so the
// first file loaded wins.
func LoadConfig() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = DevEnv
	}

	// .env.[env].local usually carries secrets and has the highest priority
	godotenv.Load(".env." + env + ".local")
	if env != TestEnv {
		godotenv.Load(".env.local")
	}
	godotenv.Load(".env." + env)
	godotenv.Load(".env")

	cfg := &Config{
		Env:           env,
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", "inkwell.db"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		MediaDir:      getEnv("MEDIA_DIR", "media"),
		CacheDir:      getEnv("CACHE_DIR", "cache"),
		CookieSecure:  parseBool(os.Getenv("COOKIE_SECURE")),
		SiteURL:       strings.TrimSuffix(getEnv("DOMAIN", "http://localhost:8080"), "/"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET environment variable not set")
	}
	if c.Env == ProdEnv && len(c.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters in prod")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
