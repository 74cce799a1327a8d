package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	assert.Equal(t, Production, GetEnvironment())

	t.Setenv("ENV", "test")
	assert.Equal(t, Test, GetEnvironment())

	t.Setenv("ENV", "")
	assert.Equal(t, Development, GetEnvironment())
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("SECRETS_DIR", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "mealforge", cfg.DBName)
	assert.Equal(t, "https://api.deepseek.com/v1/chat/completions", cfg.LLMAPIURL)
	assert.Equal(t, "https://api.pexels.com/v1/search", cfg.ImageSearchURL)
	assert.Empty(t, cfg.S3Bucket)
}

func TestLoadConfig_ProductionRequiresLLMKey(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SECRETS_DIR", t.TempDir())
	t.Setenv("LLM_API_KEY", "")

	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("LLM_API_KEY", "sk-test")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLMAPIKey)
}

func TestLoadConfig_InvalidRedisDB(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("SECRETS_DIR", t.TempDir())
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestGetSecret(t *testing.T) {
	t.Run("env value wins", func(t *testing.T) {
		t.Setenv("APP_TOKEN", "direct")
		assert.Equal(t, "direct", getSecret("APP_TOKEN"))
	})

	t.Run("file fallback", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
		t.Setenv("APP_TOKEN", "")
		t.Setenv("APP_TOKEN_FILE", path)
		assert.Equal(t, "from-file", getSecret("APP_TOKEN"))
	})

	t.Run("secrets dir fallback", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "app_token"), []byte("from-secrets"), 0o600))
		t.Setenv("APP_TOKEN", "")
		t.Setenv("APP_TOKEN_FILE", "")
		t.Setenv("SECRETS_DIR", dir)
		assert.Equal(t, "from-secrets", getSecret("APP_TOKEN"))
	})

	t.Run("absent everywhere", func(t *testing.T) {
		t.Setenv("APP_TOKEN", "")
		t.Setenv("APP_TOKEN_FILE", "")
		t.Setenv("SECRETS_DIR", t.TempDir())
		assert.Empty(t, getSecret("APP_TOKEN"))
	})
}
