// Package config loads and validates the archiver configuration.
//
// Configuration is a YAML file decoded strictly (unknown fields are
// rejected, catching typos) and then validated against an embedded CUE
// schema: limits must be positive, the extension non-empty.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/casefile/casefile/internal/archive"
)

//go:embed schema.cue
var schemaCUE string

// Config carries the archiver settings.
type Config struct {
	// Extension is the display-name extension of untitled documents.
	Extension string `yaml:"extension" json:"extension"`

	// MaxOpenFiles bounds the document registry.
	MaxOpenFiles int `yaml:"max_open_files" json:"max_open_files"`

	// MaxFileBytes bounds the decoded size of an opened file.
	MaxFileBytes int `yaml:"max_file_bytes" json:"max_file_bytes"`

	// PathPrefix sandboxes open/save targets when non-empty.
	PathPrefix string `yaml:"path_prefix" json:"path_prefix"`

	// Database is the SQLite snapshot database path.
	Database string `yaml:"database" json:"database"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Extension:    "txt",
		MaxOpenFiles: archive.DefaultMaxOpenFiles,
		MaxFileBytes: archive.DefaultMaxFileBytes,
		Database:     "casefile.db",
	}
}

// Load reads, parses, and validates the YAML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes over the defaults and validates the
// result. Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate unifies the config with the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	unified := schema.Unify(ctx.Encode(c))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

// EngineOptions converts the config into engine options.
func (c Config) EngineOptions() archive.Options {
	return archive.Options{
		Extension:    c.Extension,
		MaxOpenFiles: c.MaxOpenFiles,
		MaxFileBytes: c.MaxFileBytes,
	}
}
