package redcap_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Varadharajan88/gocap/pkg/redcap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "redcap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
url: https://redcap.example.org/api/
token: SECRET
name: demo
verify_tls: true
timeout: 5s
`)

	cfg, err := redcap.LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "https://redcap.example.org/api/", cfg.URL)
	assert.Equal(t, "SECRET", cfg.Token)
	assert.Equal(t, "demo", cfg.Name)
	assert.True(t, cfg.VerifyTLS)
	assert.Equal(t, redcap.Duration(5*time.Second), cfg.Timeout)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
url: https://redcap.example.org/api/
token: SECRET
`)

	cfg, err := redcap.LoadConfig(path)

	require.NoError(t, err)
	assert.False(t, cfg.VerifyTLS)
	assert.Equal(t, redcap.Duration(redcap.DefaultTimeout), cfg.Timeout)
}

func TestLoadConfig_MissingToken(t *testing.T) {
	path := writeConfig(t, `
url: https://redcap.example.org/api/
`)

	_, err := redcap.LoadConfig(path)

	var cfgErr *redcap.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "token")
}

func TestLoadConfig_BadURL(t *testing.T) {
	path := writeConfig(t, `
url: not-a-url
token: SECRET
`)

	_, err := redcap.LoadConfig(path)

	var cfgErr *redcap.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "url")
}

func TestLoadConfig_BadTimeout(t *testing.T) {
	path := writeConfig(t, `
url: https://redcap.example.org/api/
token: SECRET
timeout: soon
`)

	_, err := redcap.LoadConfig(path)

	require.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("REDCAP_URL", "https://redcap.example.org/api/")
	t.Setenv("REDCAP_TOKEN", "SECRET")
	t.Setenv("REDCAP_PROJECT_NAME", "demo")
	t.Setenv("REDCAP_VERIFY_TLS", "true")
	t.Setenv("REDCAP_TIMEOUT", "10s")

	cfg, err := redcap.LoadConfigFromEnv()

	require.NoError(t, err)
	assert.Equal(t, "https://redcap.example.org/api/", cfg.URL)
	assert.Equal(t, "SECRET", cfg.Token)
	assert.Equal(t, "demo", cfg.Name)
	assert.True(t, cfg.VerifyTLS)
	assert.Equal(t, redcap.Duration(10*time.Second), cfg.Timeout)
}

func TestLoadConfigFromEnv_MissingURL(t *testing.T) {
	t.Setenv("REDCAP_URL", "")
	t.Setenv("REDCAP_TOKEN", "SECRET")

	_, err := redcap.LoadConfigFromEnv()

	var cfgErr *redcap.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadConfigFromEnv_BadVerifyTLS(t *testing.T) {
	t.Setenv("REDCAP_URL", "https://redcap.example.org/api/")
	t.Setenv("REDCAP_TOKEN", "SECRET")
	t.Setenv("REDCAP_VERIFY_TLS", "maybe")

	_, err := redcap.LoadConfigFromEnv()

	var cfgErr *redcap.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
