package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Port       string
	SQLitePath string

	// SessionSecret signs the session cookie. Required.
	SessionSecret []byte
	// SessionMaxAge is the cookie lifetime in seconds.
	SessionMaxAge int
	// SecureCookies marks the session cookie Secure; enable behind HTTPS.
	SecureCookies bool

	BcryptCost int

	LogLevel  string
	LogFormat string
}

// LoadConfig reads settings from the environment after loading envFiles into
// it. With no files given, a missing .env in the working directory is ignored.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is not set")
	}

	cost, err := getEnvInt("BCRYPT_COST", bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	maxAge, err := getEnvInt("SESSION_MAX_AGE", 86400*30)
	if err != nil {
		return nil, err
	}
	if maxAge < 0 {
		return nil, fmt.Errorf("SESSION_MAX_AGE must not be negative")
	}

	secure, err := strconv.ParseBool(getEnv("SECURE_COOKIES", "false"))
	if err != nil {
		return nil, fmt.Errorf("SECURE_COOKIES: %w", err)
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		SQLitePath:    getEnv("SQLITE_PATH", filepath.Join("data", "blog.db")),
		SessionSecret: []byte(sessionSecret),
		SessionMaxAge: maxAge,
		SecureCookies: secure,
		BcryptCost:    cost,
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "console")),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
