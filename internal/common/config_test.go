package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobtracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  dsn: file:from-file.db
auth:
  service_key: file-service-key-0123456789
  client_key: file-client-key
roles:
  fallback_role: cutting
`), 0o600))
	t.Setenv("DB_URL", "file:from-env.db")
	t.Setenv("ROLES_FALLBACK", "")
	t.Setenv("RATE_LIMIT_RPS", "7.5")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:from-env.db", cfg.Database.DSN)
	assert.Equal(t, "file-client-key", cfg.Auth.ClientKey)
	assert.Equal(t, 7.5, cfg.Server.RequestsPerSec)
	assert.Empty(t, cfg.Roles.FallbackRole, "an explicitly empty env var disables the fallback")
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Driver = "mysql"
	cfg.Auth.ServiceKey = "short"
	cfg.Auth.ClientKey = "short"
	cfg.Roles.FallbackRole = "admin"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	for _, want := range []string{"DB_DRIVER", "DB_URL", "AUTH_SERVICE_KEY", "AUTH_CLIENT_KEY must differ", "ROLES_FALLBACK"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestAuthConfigRedactsSecrets(t *testing.T) {
	v := AuthConfig{ServiceKey: "super-secret", ClientKey: "browser", LoginDomain: "example.com"}.LogValue()
	assert.NotContains(t, v.String(), "super-secret")
	assert.NotContains(t, v.String(), "browser")
	assert.Contains(t, v.String(), "example.com")
}
