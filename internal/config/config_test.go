package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9090\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 20, cfg.Memory.Cap)
	assert.Equal(t, 24*time.Hour, cfg.Memory.MaxAge)
	assert.Equal(t, "@every 10m", cfg.Memory.SweepSchedule)
	assert.Equal(t, "keyword", cfg.Intent.Provider)
	assert.Equal(t, "demo", cfg.Analytics.Provider)
	assert.Equal(t, 7*24*time.Hour, cfg.Database.Redis.ArchiveTTL)
}

func TestLoad_ParsesTopicsAndDurations(t *testing.T) {
	path := writeConfig(t, `
memory:
  cap: 50
  max_age: 90m
  topics:
    azuki: ["azuki", "bean"]
  conservative_keywords: ["safe"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Memory.Cap)
	assert.Equal(t, 90*time.Minute, cfg.Memory.MaxAge)
	assert.Equal(t, []string{"azuki", "bean"}, cfg.Memory.Topics["azuki"])
	assert.Equal(t, []string{"safe"}, cfg.Memory.ConservativeKeywords)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "llm:\n  api_key: \"from-file\"\n")
	t.Setenv("NFTSAGE_LLM_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad intent provider":    "intent:\n  provider: magic\n",
		"http analytics no url":  "analytics:\n  provider: http\n",
		"telegram without token": "telegram:\n  enabled: true\n",
		"zero cap":               "memory:\n  cap: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSampleConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}
