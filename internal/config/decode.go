package config

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-yaml"
)

// MaxConfigSize caps the config file read from disk.
const MaxConfigSize = 1 << 20

// decode parses a config file strictly into cfg: unknown keys such as a
// misspelled "wokers" are errors rather than silently ignored. Fields
// absent from the file keep the values already in cfg.
func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: file is empty", ErrConfigParse)
	}
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return fmt.Errorf("%w:\n%s", ErrConfigParse, yaml.FormatError(err, false, true))
	}
	return nil
}
