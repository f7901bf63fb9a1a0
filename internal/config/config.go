// Package config resolves runtime settings from built-in defaults, an optional
// YAML file and environment variables, in that order of precedence (later wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tinoosan/bankledger/internal/credential"
)

// Store backends.
const (
	BackendJSON     = "json"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the full runtime configuration.
type Config struct {
	Log      LogConfig   `yaml:"log"`
	Store    StoreConfig `yaml:"store"`
	Currency string      `yaml:"currency"`
	Hash     string      `yaml:"hash_algorithm"`
	HTTP     HTTPConfig  `yaml:"http"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Backend      string `yaml:"backend"`
	DataDir      string `yaml:"data_dir"`
	UsersFile    string `yaml:"users_file"`
	AccountsFile string `yaml:"accounts_file"`
	MetaFile     string `yaml:"meta_file"`
	SQLitePath   string `yaml:"sqlite_path"`
	DatabaseURL  string `yaml:"database_url"`
}

type HTTPConfig struct {
	Addr        string        `yaml:"addr"`
	JWTSecret   string        `yaml:"jwt_secret"`
	JWTIssuer   string        `yaml:"jwt_issuer"`
	JWTAudience string        `yaml:"jwt_audience"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

// Default returns the built-in settings: JSON documents in the working
// directory, USD, SHA-256 and a JSON logger at info level.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "json"},
		Store:    StoreConfig{Backend: BackendJSON, DataDir: "."},
		Currency: "USD",
		Hash:     string(credential.AlgorithmSHA256),
		HTTP:     HTTPConfig{Addr: ":8080", TokenTTL: 15 * time.Minute},
	}
}

// Load applies the YAML file at path (skipped when path is empty) and then
// environment overrides read through getenv, and validates the result.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Log.Format, "LOG_FORMAT")
	set(&c.Store.Backend, "BANK_STORE")
	set(&c.Store.DataDir, "BANK_DATA_DIR")
	set(&c.Store.UsersFile, "BANK_USERS_FILE")
	set(&c.Store.AccountsFile, "BANK_ACCOUNTS_FILE")
	set(&c.Store.MetaFile, "BANK_META_FILE")
	set(&c.Store.SQLitePath, "BANK_SQLITE_PATH")
	set(&c.Store.DatabaseURL, "DATABASE_URL")
	set(&c.Currency, "BANK_CURRENCY")
	set(&c.Hash, "BANK_HASH")
	set(&c.HTTP.Addr, "BANK_ADDR")
	set(&c.HTTP.JWTSecret, "JWT_HS256_SECRET")
	set(&c.HTTP.JWTIssuer, "JWT_ISSUER")
	set(&c.HTTP.JWTAudience, "JWT_AUDIENCE")
	if v := strings.TrimSpace(getenv("BANK_TOKEN_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BANK_TOKEN_TTL: %w", err)
		}
		c.HTTP.TokenTTL = d
	}
	// DATABASE_URL alone selects postgres, as it always has
	if getenv("BANK_STORE") == "" && c.Store.DatabaseURL != "" && c.Store.Backend == BackendJSON {
		c.Store.Backend = BackendPostgres
	}
	return nil
}

// Validate rejects settings no component can honour.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log format %q: want json or text", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error", "err":
	default:
		return fmt.Errorf("log level %q: want debug, info, warn or error", c.Log.Level)
	}
	switch c.Store.Backend {
	case BackendJSON, BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("postgres store requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("store backend %q: want json, memory, sqlite or postgres", c.Store.Backend)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency %q: want a 3-letter ISO 4217 code", c.Currency)
	}
	if _, err := credential.Lookup(c.Hash); err != nil {
		return fmt.Errorf("hash_algorithm: %w", err)
	}
	if c.HTTP.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.HTTP.TokenTTL)
	}
	return nil
}

// UsersPath returns the users document location.
func (c Config) UsersPath() string { return c.docPath(c.Store.UsersFile, "users.json") }

// AccountsPath returns the accounts document location.
func (c Config) AccountsPath() string { return c.docPath(c.Store.AccountsFile, "accounts.json") }

// MetaPath returns the meta document location.
func (c Config) MetaPath() string { return c.docPath(c.Store.MetaFile, "meta.json") }

// SQLiteFile returns the SQLite database location.
func (c Config) SQLiteFile() string { return c.docPath(c.Store.SQLitePath, "bank.db") }

func (c Config) docPath(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(c.Store.DataDir, name)
}
