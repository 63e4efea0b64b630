package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/config.yaml",
	"./configs/config.yml",
	"./configs/development.yaml",
	"/etc/cvbuilder/config.yaml",
	"/etc/cvbuilder/config.yml",
}

// DefaultEnvFile is loaded into the process environment before the config file is read
var DefaultEnvFile = ".env"

// envProviders lists the providers that can be configured purely from the environment
var envProviders = []string{"google", "auth0", "github", "microsoft"}

// Load loads the configuration from the specified file or default locations,
// then applies environment overrides and validates the result.
func Load(configPath string) (*Config, error) {
	if fileExists(DefaultEnvFile) {
		// Existing environment variables win over .env entries
		if err := godotenv.Load(DefaultEnvFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", DefaultEnvFile, err)
		}
	}

	config := defaults()

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if !fileExists(configPath) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		slog.Info("Loading config", "path", configPath)
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		slog.Info("No config file found, using defaults and environment")
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Environment: "local",
		NodeID:      1,
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 5,
				Burst:             20,
			},
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			Postgres: PostgresConfig{
				Host:         "localhost",
				Port:         5432,
				Database:     "cvbuilder",
				User:         "postgres",
				SSLMode:      "disable",
				MaxOpenConns: 25,
				MaxIdleConns: 5,
			},
		},
		Auth: AuthConfig{
			ProviderTimeout: 10 * time.Second,
			JWT: JWTConfig{
				Lifetime: 10080 * time.Minute,
			},
		},
	}
}

// applyEnvOverrides lets secrets and connection strings come from the environment
func applyEnvOverrides(config *Config) error {
	setString(&config.Database.Postgres.ConnectionString, "DB_CONNECTION_STRING")
	setString(&config.Auth.JWT.Secret, "JWT_SECRET")
	setString(&config.Auth.JWT.Issuer, "JWT_ISSUER")
	setString(&config.Auth.JWT.Audience, "JWT_AUDIENCE")
	setString(&config.Auth.EncryptionKey, "TOKEN_ENCRYPTION_KEY")

	if v := os.Getenv("JWT_EXPIRES_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_EXPIRES_MINUTES %q: %w", v, err)
		}
		config.Auth.JWT.Lifetime = time.Duration(minutes) * time.Minute
	}

	for _, name := range envProviders {
		prefix := strings.ToUpper(name) + "_"
		clientID := os.Getenv(prefix + "CLIENT_ID")

		p, ok := config.Auth.Provider(name)
		if !ok {
			if clientID == "" {
				continue
			}
			config.Auth.Providers = append(config.Auth.Providers, ProviderConfig{Name: name})
			p = &config.Auth.Providers[len(config.Auth.Providers)-1]
		}

		setString(&p.ClientID, prefix+"CLIENT_ID")
		setString(&p.ClientSecret, prefix+"CLIENT_SECRET")
		setString(&p.Domain, prefix+"DOMAIN")
		setString(&p.Issuer, prefix+"ISSUER")
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// validate collects every missing or invalid required value so startup fails
// with a single complete report.
func validate(config *Config) error {
	var missing []string

	if config.Auth.JWT.Secret == "" {
		missing = append(missing, "auth.jwt.secret (JWT_SECRET)")
	}
	if config.Auth.JWT.Issuer == "" {
		missing = append(missing, "auth.jwt.issuer (JWT_ISSUER)")
	}
	if config.Auth.JWT.Audience == "" {
		missing = append(missing, "auth.jwt.audience (JWT_AUDIENCE)")
	}

	switch config.Database.Driver {
	case "postgres":
		pg := config.Database.Postgres
		if pg.ConnectionString == "" && (pg.Host == "" || pg.Database == "" || pg.User == "") {
			missing = append(missing, "database.postgres.connection_string (DB_CONNECTION_STRING)")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be one of postgres, memory (got %q)", config.Database.Driver)
	}

	seen := make(map[string]bool)
	for i := range config.Auth.Providers {
		p := &config.Auth.Providers[i]
		if p.Name == "" {
			return errors.New("auth.providers: every provider needs a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("auth.providers: provider %q configured twice", p.Name)
		}
		seen[p.Name] = true

		if p.Disabled || p.ClientID == "" {
			continue
		}
		if p.ClientSecret == "" {
			missing = append(missing, fmt.Sprintf("auth.providers[%s].client_secret", p.Name))
		}
		switch strings.ToLower(strings.TrimSpace(p.Name)) {
		case "auth0":
			if p.Domain == "" && !p.HasExplicitEndpoints() {
				missing = append(missing, "auth.providers[auth0].domain (AUTH0_DOMAIN)")
			}
		case "microsoft":
			if p.Issuer == "" {
				missing = append(missing, "auth.providers[microsoft].issuer (MICROSOFT_ISSUER)")
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if config.Auth.JWT.Lifetime <= 0 {
		return errors.New("auth.jwt.lifetime must be positive")
	}
	if config.Auth.ProviderTimeout <= 0 {
		return errors.New("auth.provider_timeout must be positive")
	}
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}

	return nil
}
