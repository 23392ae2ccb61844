// Package config contains the configuration file of the adblock command.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/c2h5oh/datasize"
	"github.com/webmacs/adblock"
	"gopkg.in/yaml.v3"
)

// ErrNoRules is returned by [Config.Validate] when the configuration has
// neither filter files nor a blob to load.
const ErrNoRules errors.Error = "no filter files and no blob"

// Config is the configuration file structure.
type Config struct {
	// FilterFiles are the paths to the filter lists.  Each file is parsed as
	// a separate filter list, in order.
	FilterFiles []string `yaml:"filter_files"`

	// Blob is the path to the rule blob.  If the file exists, it is loaded
	// before the filter files are parsed.
	Blob string `yaml:"blob"`

	// MaxBlobSize is the limit of the blob size, for example "64MB".
	MaxBlobSize datasize.ByteSize `yaml:"max_blob_size"`

	// Workers is the number of filter files read concurrently.  Zero means
	// one per file.
	Workers int `yaml:"workers"`

	// Compress enables zstd compression of the saved blob.
	Compress bool `yaml:"compress"`

	// DetectThirdParty enables the third-party detection for requests without
	// party flags.
	DetectThirdParty bool `yaml:"detect_third_party"`
}

// Read reads and validates the configuration file at path.  Unknown fields are
// errors.
func Read(path string) (c *Config, err error) {
	// #nosec G304 -- The path is provided by the user.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	c = &Config{}
	err = dec.Decode(c)
	if err != nil {
		return nil, fmt.Errorf("decoding config %q: %w", path, err)
	}

	err = c.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating config %q: %w", path, err)
	}

	return c, nil
}

// Validate returns an error if c is invalid.  c must not be nil.
func (c *Config) Validate() (err error) {
	var errs []error
	if len(c.FilterFiles) == 0 && c.Blob == "" {
		errs = append(errs, ErrNoRules)
	}

	for i, f := range c.FilterFiles {
		if f == "" {
			errs = append(errs, fmt.Errorf("filter_files: at index %d: %w", i, errors.ErrEmptyValue))
		}
	}

	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers: %w: %d", errors.ErrNegative, c.Workers))
	}

	return errors.Join(errs...)
}

// EngineConfig returns the engine configuration.
func (c *Config) EngineConfig(logger *slog.Logger) (conf *adblock.Config) {
	return &adblock.Config{
		Logger:           logger,
		MaxBlobSize:      c.MaxBlobSize,
		Compress:         c.Compress,
		DetectThirdParty: c.DetectThirdParty,
	}
}
