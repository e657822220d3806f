// Package config loads and validates the .csdoc.yml project configuration.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/csdoc/internal/extref"
	"github.com/phobologic/csdoc/internal/logging"
)

// FileNames are the configuration file names searched for, in order.
var FileNames = []string{".csdoc.yml", ".csdoc.yaml"}

// DefaultMaxFileSize is the largest source file parsed by default.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.Base("invalid configuration")

// Config holds every setting of a run. Command line flags override values
// read from the file.
type Config struct {
	Format             string `yaml:"format" validate:"oneof=toon json yaml rst"`
	Output             string `yaml:"output,omitempty"`
	Jobs               int    `yaml:"jobs" validate:"min=1,max=256"`
	MaxFileSize        int64  `yaml:"max_file_size" validate:"min=1"`
	MaxTypes           int    `yaml:"max_types,omitempty" validate:"min=0"`
	Filter             string `yaml:"filter,omitempty"`
	FilterFile         string `yaml:"filter_file,omitempty"`
	Cache              string `yaml:"cache,omitempty"`
	LinkSignatureTypes bool   `yaml:"link_signature_types"`
	ExternalLinks      bool   `yaml:"external_links"`
	CheckLinks         bool   `yaml:"check_links"`
	Strict             bool   `yaml:"strict"`
	LogLevel           string `yaml:"log_level" validate:"oneof=debug info warn error"`
	NoColor            bool   `yaml:"no_color"`

	// Command line only.
	DebugParse bool `yaml:"-"`
	DebugXref  bool `yaml:"-"`

	// External reference tables, merged into the built-in ones.
	extref.Data `yaml:",inline"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Format:        "toon",
		Jobs:          1,
		MaxFileSize:   DefaultMaxFileSize,
		ExternalLinks: true,
		LogLevel:      "warn",
	}
}

// Find returns the first configuration file present in dir, or "".
func Find(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected. The result is not validated; call Validate
// once flags have been applied.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WithMessagef(err, "reading config %s", path)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, errors.WithMessagef(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg, leaving absent keys untouched.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Errorf("parse config: %w", err)
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return errors.Errorf("%w: %s", ErrInvalid, err.Error())
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() slog.Level {
	l, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return l
}

// ExtRef returns the external reference tables: the built-in defaults
// extended with the configured ones.
func (c Config) ExtRef() extref.Data {
	return extref.Defaults().Merge(c.Data)
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}
