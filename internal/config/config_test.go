package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bank.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "users.json", cfg.UsersPath())
	assert.Equal(t, "accounts.json", cfg.AccountsPath())
	assert.Equal(t, "meta.json", cfg.MetaPath())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
  format: text
store:
  backend: sqlite
  data_dir: /var/lib/bank
currency: EUR
http:
  addr: ":9090"
  token_ttl: 1h
`)
	cfg, err := Load(path, envMap(map[string]string{
		"BANK_ADDR":        ":7070",
		"BANK_USERS_FILE":  "/tmp/u.json",
		"JWT_HS256_SECRET": "s3cret",
	}))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, time.Hour, cfg.HTTP.TokenTTL)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "s3cret", cfg.HTTP.JWTSecret)
	assert.Equal(t, "/tmp/u.json", cfg.UsersPath())
	assert.Equal(t, filepath.Join("/var/lib/bank", "accounts.json"), cfg.AccountsPath())
	assert.Equal(t, filepath.Join("/var/lib/bank", "bank.db"), cfg.SQLiteFile())
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	_, err := Load(writeFile(t, "curency: EUR\n"), envMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
	require.Error(t, err)
}

func TestLoad_DatabaseURLSelectsPostgres(t *testing.T) {
	cfg, err := Load("", envMap(map[string]string{"DATABASE_URL": "postgres://localhost/bank"}))
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)

	cfg, err = Load("", envMap(map[string]string{"DATABASE_URL": "postgres://localhost/bank", "BANK_STORE": "memory"}))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestValidate(t *testing.T) {
	cases := map[string]map[string]string{
		"format":   {"LOG_FORMAT": "xml"},
		"level":    {"LOG_LEVEL": "loud"},
		"backend":  {"BANK_STORE": "redis"},
		"postgres": {"BANK_STORE": "postgres"},
		"currency": {"BANK_CURRENCY": "DOLLARS"},
		"hash":     {"BANK_HASH": "md5"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load("", envMap(env))
			assert.Error(t, err)
		})
	}

	_, err := Load("", envMap(map[string]string{"BANK_TOKEN_TTL": "soon"}))
	assert.ErrorContains(t, err, "BANK_TOKEN_TTL")
}
