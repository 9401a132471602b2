package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigFromFile_Defaults(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "console.db")
	path := writeConfig(t, `
backend:
  base_url: http://127.0.0.1:5000
database:
  path: `+dbPath+`
session:
  secret_key: test-secret
`)

	cfg, err := loadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:18090", cfg.Server.GetAddress())
	assert.Equal(t, 20, cfg.UI.SearchPageSize)
	assert.Equal(t, 10, cfg.UI.PageSize("favorites"))
	assert.Equal(t, 50, cfg.UI.PageSize("messages"))
	assert.Equal(t, 5, cfg.UI.WindowSize)
	assert.Equal(t, 3, cfg.UI.ContextSize)
	assert.Equal(t, int64(2000), cfg.UI.GetPollInterval().Milliseconds())
	assert.Equal(t, "HS256", cfg.Session.Algorithm)
	assert.Equal(t, "inspect_session", cfg.Session.CookieName)
	assert.False(t, cfg.Redis.Enabled)

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err)
}

func TestLoadConfigFromFile_Overrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
backend:
  base_url: http://backend:5000
  timeout_seconds: 5
database:
  path: ":memory:"
session:
  secret_key: s
ui:
  search_page_size: 30
  poll_interval_ms: 500
`)

	t.Setenv("INSPECT_UI_SEARCH_PAGE_SIZE", "40")

	cfg, err := loadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 40, cfg.UI.SearchPageSize)
	assert.Equal(t, int64(500), cfg.UI.GetPollInterval().Milliseconds())
	assert.Equal(t, float64(5), cfg.Backend.GetTimeout().Seconds())
	assert.Equal(t, 10, cfg.UI.HistoryLimit)
}

func TestLoadConfigFromFile_Validation(t *testing.T) {
	cases := map[string]string{
		"missing backend": `
session:
  secret_key: s
database:
  path: ":memory:"
`,
		"bad backend url": `
backend:
  base_url: not-a-url
session:
  secret_key: s
database:
  path: ":memory:"
`,
		"missing secret": `
backend:
  base_url: http://127.0.0.1:5000
database:
  path: ":memory:"
`,
		"redis without host": `
backend:
  base_url: http://127.0.0.1:5000
session:
  secret_key: s
database:
  path: ":memory:"
redis_service:
  enabled: true
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfigFromFile(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFromFile_MissingFile(t *testing.T) {
	_, err := loadConfigFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
