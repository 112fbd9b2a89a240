package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `env: local
server:
  port: "9090"
quiz:
  ttl: 2m
  question_seconds: 30
remote:
  base_url: https://example.test
  ontology: quiz
  object_type: QuestionUploaded
  token: from-file
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("QUIZ_REMOTE_TOKEN", "from-env")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30, cfg.Quiz.QuestionSeconds)
	assert.Equal(t, "from-env", cfg.Remote.Token)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 2*time.Minute, TTLDuration(cfg.Quiz.TTL, time.Minute))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTTLDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
	assert.Equal(t, 5*time.Second, TTLDuration("5s", time.Minute))
}
