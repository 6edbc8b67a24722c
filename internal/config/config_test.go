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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
queue:
  batch_mode: false
  task_timeout: 90s
  samples:
    - https://cdn.example.com/mug.png
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Queue.BatchMode)
	assert.Equal(t, 90*time.Second, cfg.Queue.TaskTimeout)
	assert.Equal(t, []string{"https://cdn.example.com/mug.png"}, cfg.Queue.Samples)

	// Untouched sections keep their defaults.
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "gemini", cfg.Generator.Provider)
	assert.Equal(t, "gemini-2.5-flash-image", cfg.Generator.Model)
	assert.Equal(t, 1536, cfg.Queue.ReferenceMaxDim)
	assert.Equal(t, "generation_log", cfg.Storage.Prefix)
	assert.False(t, cfg.Storage.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("QUEUE_OWNER", "ops")

	cfg, err := Load(writeConfig(t, "server:\n  port: 8081\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Generator.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "ops", cfg.Queue.Owner)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:  DatabaseConfig{Driver: "sqlite"},
			Generator: GeneratorConfig{Provider: "gemini"},
			Queue:     QueueConfig{ReferenceMaxDim: 1536},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "unknown driver"},
		{name: "postgres without url", mutate: func(c *Config) { c.Database.Driver = "postgres" }, wantErr: "url is required"},
		{name: "unknown provider", mutate: func(c *Config) { c.Generator.Provider = "dalle" }, wantErr: "unknown provider"},
		{name: "zero max dim", mutate: func(c *Config) { c.Queue.ReferenceMaxDim = 0 }, wantErr: "reference_max_dim"},
		{name: "negative timeout", mutate: func(c *Config) { c.Queue.TaskTimeout = -time.Second }, wantErr: "task_timeout"},
		{name: "storage without bucket", mutate: func(c *Config) { c.Storage.Enabled = true }, wantErr: "bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	assert.Equal(t, "postgres://u@h/db", (&DatabaseConfig{Driver: "postgres", URL: "postgres://u@h/db"}).DSN())
	assert.Equal(t, "./data/x.db", (&DatabaseConfig{Driver: "sqlite", Path: "./data/x.db"}).DSN())
	assert.Equal(t, "file::memory:?cache=shared", (&DatabaseConfig{Driver: "sqlite"}).DSN())
}
