package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
domotica:
  base_url: https://consola.example.test
  username: admin
  password: secreto
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.True(t, cfg.Domotica.Headless)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.True(t, cfg.Sync.Enabled)
	require.Equal(t, 30*time.Second, cfg.SyncInterval())
	require.False(t, cfg.DB.Enabled)
	require.Equal(t, "domotica.tasks", cfg.RabbitMQ.Queue)
}

func TestLoadRequiresCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, `
domotica:
  base_url: https://consola.example.test
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "username")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("DOMOTICA_SERVER_PORT", "9999")
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Server.Port)
}

func TestValidateConditionalRequirements(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
auth:
  enabled: true
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "api_key")

	_, err = Load(writeConfig(t, minimalYAML+`
db:
  enabled: true
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "dsn")

	_, err = Load(writeConfig(t, minimalYAML+`
rabbitmq:
  enabled: true
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rabbitmq.url")
}

func TestCredentialsAndRetryBuilders(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
retry:
  max_attempts: 5
  backoff_initial_ms: 100
  backoff_max_ms: 2000
`))
	require.NoError(t, err)

	creds := cfg.Credentials()
	require.Equal(t, "admin", creds.Usuario)
	require.Equal(t, 15*time.Second, creds.StepTimeout)
	require.NoError(t, creds.Validate())

	policy := cfg.RetryPolicy()
	require.Equal(t, 5, policy.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, policy.BaseDelay)
	require.Equal(t, 2*time.Second, policy.MaxDelay)
}
