package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("WORKSLA_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.JournalPageSize)
	assert.Equal(t, 20, cfg.JournalMaxPages)
	assert.Equal(t, 200, cfg.WPListFetchSize)
	assert.Equal(t, 12, cfg.WPListPageSize)
	assert.Equal(t, "*/15 * * * *", cfg.WorkerRefreshCron)
	assert.Equal(t, "Asia/Bangkok", cfg.Location().String())
	assert.Equal(t, language.Thai, cfg.Language())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsUnknownTimezone(t *testing.T) {
	setRequired(t)
	t.Setenv("WORKSLA_ENV_FILE", "")
	chdir(t, t.TempDir())
	t.Setenv("DISPLAY_TIMEZONE", "Mars/Olympus")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "display timezone")
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("SESSION_SECRET", "from-env")
	t.Setenv("CSRF_SECRET", "csrf")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SESSION_SECRET=from-file\nAPI_BASE_URL=http://backend:8000/api/\nAPI_TIMEOUT=7s\n"), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SessionSecret, "existing variables win over .env")
	assert.Equal(t, "http://backend:8000/api", cfg.APIBaseURL)
	assert.Equal(t, 7*time.Second, cfg.APITimeout)
}

func TestLoadConfigMissingExplicitEnvFile(t *testing.T) {
	setRequired(t)

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel(" Warning ").String())
	assert.Equal(t, "INFO", parseLevel("").String())
}

func TestParseTestMode(t *testing.T) {
	for raw, want := range map[string]bool{"1": true, "true": true, "TRUE": true, "0": false, "": false, "yes": false} {
		assert.Equal(t, want, parseTestMode(raw), raw)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
