package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MLVIZ_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:5173", cfg.CORSOrigin)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 100, cfg.MaxCategories)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.TreeMaxDepth)
	assert.Equal(t, "2,2", cfg.MLPHiddenLayers)
	assert.Equal(t, 100, cfg.MLPMaxIter)
	assert.Equal(t, 1_000_000, cfg.MLPMaxParams)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("MLVIZ_CONFIG", "")
	t.Setenv("MLVIZ_HTTP_PORT", "9090")
	t.Setenv("MLVIZ_REQUEST_TIMEOUT", "30s")
	t.Setenv("MLVIZ_MLP_HIDDEN_LAYERS", "100,100")
	t.Setenv("MLVIZ_RANDOM_SEED", "42")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "100,100", cfg.MLPHiddenLayers)
	assert.Equal(t, int64(42), cfg.RandomSeed)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlviz.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_categories: 20\nlog_format: console\n"), 0o600))
	t.Setenv("MLVIZ_CONFIG", path)
	t.Setenv("MLVIZ_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.MaxCategories)
	assert.Equal(t, "json", cfg.LogFormat, "environment overrides the file")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("MLVIZ_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		HTTPPort: 8000, LogFormat: "json", MaxUploadBytes: 1, MaxCategories: 1,
		RequestTimeout: time.Second, KMeansMaxIter: 1, MLPMaxIter: 1, MLPMaxParams: 1,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTPPort = 0 }, "http_port"},
		{"format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"upload", func(c *Config) { c.MaxUploadBytes = 0 }, "max_upload_bytes"},
		{"categories", func(c *Config) { c.MaxCategories = 0 }, "max_categories"},
		{"timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"depth", func(c *Config) { c.TreeMaxDepth = -1 }, "tree_max_depth"},
		{"kmeans", func(c *Config) { c.KMeansMaxIter = 0 }, "kmeans_max_iter"},
		{"mlp", func(c *Config) { c.MLPMaxIter = 0 }, "mlp_max_iter"},
		{"mlp params", func(c *Config) { c.MLPMaxParams = 0 }, "mlp_max_params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
