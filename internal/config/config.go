package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the mlviz server.
type Config struct {
	HTTPPort        int
	CORSOrigin      string
	LogLevel        string
	LogFormat       string
	WorkDir         string // parent of the per-request workspaces
	MaxUploadBytes  int64
	MaxCategories   int
	RequestTimeout  time.Duration
	TreeMaxDepth    int
	KMeansMaxIter   int
	MLPHiddenLayers string
	MLPMaxIter      int
	MLPMaxParams    int   // cap on weights + intercepts of a requested network
	RandomSeed      int64 // 0 => seeded from the clock
}

// Load reads configuration from MLVIZ_* environment variables and, when
// MLVIZ_CONFIG names one, a config file. Environment wins over the file.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MLVIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_port", 8000)
	v.SetDefault("cors_origin", "http://localhost:5173")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("work_dir", os.TempDir())
	v.SetDefault("max_upload_bytes", 32<<20)
	v.SetDefault("max_categories", 100)
	v.SetDefault("request_timeout", 2*time.Minute)
	v.SetDefault("tree_max_depth", 5)
	v.SetDefault("kmeans_max_iter", 300)
	v.SetDefault("mlp_hidden_layers", "2,2")
	v.SetDefault("mlp_max_iter", 100)
	v.SetDefault("mlp_max_params", 1_000_000)
	v.SetDefault("random_seed", 0)

	if path := os.Getenv("MLVIZ_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	return Config{
		HTTPPort:        v.GetInt("http_port"),
		CORSOrigin:      v.GetString("cors_origin"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		WorkDir:         v.GetString("work_dir"),
		MaxUploadBytes:  v.GetInt64("max_upload_bytes"),
		MaxCategories:   v.GetInt("max_categories"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		TreeMaxDepth:    v.GetInt("tree_max_depth"),
		KMeansMaxIter:   v.GetInt("kmeans_max_iter"),
		MLPHiddenLayers: v.GetString("mlp_hidden_layers"),
		MLPMaxIter:      v.GetInt("mlp_max_iter"),
		MLPMaxParams:    v.GetInt("mlp_max_params"),
		RandomSeed:      v.GetInt64("random_seed"),
	}, nil
}

// Validate reports every out-of-range setting.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port %d out of range", c.HTTPPort))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format must be json or console, got %q", c.LogFormat))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	if c.MaxCategories < 1 {
		errs = append(errs, errors.New("max_categories must be at least 1"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.TreeMaxDepth < 0 {
		errs = append(errs, errors.New("tree_max_depth must not be negative"))
	}
	if c.KMeansMaxIter < 1 {
		errs = append(errs, errors.New("kmeans_max_iter must be at least 1"))
	}
	if c.MLPMaxIter < 1 {
		errs = append(errs, errors.New("mlp_max_iter must be at least 1"))
	}
	if c.MLPMaxParams < 1 {
		errs = append(errs, errors.New("mlp_max_params must be at least 1"))
	}
	return errors.Join(errs...)
}
