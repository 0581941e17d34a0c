// Package config loads the dataset build configuration from YAML.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"face-augmentor/internal/augment"
	"face-augmentor/internal/preprocess"

	"gopkg.in/yaml.v2"
)

const (
	EnvLogLevel = "LOG_LEVEL"
	EnvSeed     = "FACEAUG_SEED"
)

type Config struct {
	LogLevel string `yaml:"loglevel"`

	DataBase struct {
		SourceDir    string `yaml:"sourcedir"`
		ProcessedDir string `yaml:"processeddir"`
		AugmentedDir string `yaml:"augmenteddir"`
		ManifestPath string `yaml:"manifestpath"`
	} `yaml:"database"`

	RunBase struct {
		Workers         int    `yaml:"workers"`
		Seed            uint64 `yaml:"seed"`
		SkipUnchanged   bool   `yaml:"skipunchanged"`
		ContinueOnError bool   `yaml:"continueonerror"`
		Progress        bool   `yaml:"progress"`
	} `yaml:"runbase"`

	OutputBase struct {
		Format           string `yaml:"format"`
		JPEGQuality      int    `yaml:"jpegquality"`
		SavePreprocessed bool   `yaml:"savepreprocessed"`
	} `yaml:"outputbase"`

	Preprocess preprocess.Options `yaml:"preprocess"`
	Augment    augment.Parameters `yaml:"augment"`
}

// Default lays the dataset out as dataset/ -> processed/ -> augmented/.
func Default() *Config {
	cfg := &Config{LogLevel: "info"}
	cfg.DataBase.SourceDir = "dataset"
	cfg.DataBase.ProcessedDir = "processed"
	cfg.DataBase.AugmentedDir = "augmented"
	cfg.DataBase.ManifestPath = "augmented/manifest.db"
	cfg.RunBase.Workers = runtime.NumCPU()
	cfg.RunBase.SkipUnchanged = true
	cfg.RunBase.ContinueOnError = true
	cfg.RunBase.Progress = true
	cfg.OutputBase.Format = "jpg"
	cfg.OutputBase.JPEGQuality = 95
	cfg.OutputBase.SavePreprocessed = true
	cfg.Preprocess = preprocess.DefaultOptions()
	cfg.Augment = augment.DefaultParameters()
	return cfg
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() error {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
	if seed := os.Getenv(EnvSeed); seed != "" {
		v, err := strconv.ParseUint(seed, 10, 64)
		if err != nil {
			return &ValidationError{Field: EnvSeed, Value: seed, Reason: "must be an unsigned integer"}
		}
		c.RunBase.Seed = v
	}
	return nil
}

type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid %s value %v - %s", ve.Field, ve.Value, ve.Reason)
}

func (c *Config) Validate() error {
	if c.DataBase.SourceDir == "" {
		return &ValidationError{Field: "database.sourcedir", Value: `""`, Reason: "must not be empty"}
	}
	if c.DataBase.AugmentedDir == "" {
		return &ValidationError{Field: "database.augmenteddir", Value: `""`, Reason: "must not be empty"}
	}
	if c.OutputBase.SavePreprocessed && c.DataBase.ProcessedDir == "" {
		return &ValidationError{Field: "database.processeddir", Value: `""`, Reason: "required when savepreprocessed is set"}
	}
	if c.RunBase.Workers < 1 {
		return &ValidationError{Field: "runbase.workers", Value: c.RunBase.Workers, Reason: "must be at least 1"}
	}
	switch strings.ToLower(c.OutputBase.Format) {
	case "jpg", "jpeg", "png", "bmp", "tif", "tiff", "gif":
	default:
		return &ValidationError{Field: "outputbase.format", Value: c.OutputBase.Format, Reason: "unsupported image format"}
	}
	if c.OutputBase.JPEGQuality < 1 || c.OutputBase.JPEGQuality > 100 {
		return &ValidationError{Field: "outputbase.jpegquality", Value: c.OutputBase.JPEGQuality, Reason: "must be between 1 and 100"}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Field: "loglevel", Value: c.LogLevel, Reason: "must be debug, info, warn or error"}
	}
	if err := c.Preprocess.Validate(); err != nil {
		return &ValidationError{Field: "preprocess", Value: c.Preprocess, Reason: err.Error()}
	}
	if err := c.Augment.Validate(); err != nil {
		return &ValidationError{Field: "augment", Value: c.Augment, Reason: err.Error()}
	}
	return nil
}
