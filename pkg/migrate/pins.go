package migrate

import (
	"github.com/spf13/viper"

	"github.com/errdeck/errdeck/internal/errx"
)

// Pin is one dependency entry in the legacy configuration. Either a
// version or a local path must be present for the pin to be mappable.
type Pin struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Path    string `mapstructure:"path"`
}

// legacyConfig is the parsed legacy pin file.
type legacyConfig struct {
	Project string
	Pins    []Pin
}

// readLegacyConfig parses the legacy pin file. The format (YAML, JSON or
// TOML) is sniffed from the file extension.
func readLegacyConfig(path string) (*legacyConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errx.Wrap(ErrParseConfig, err)
	}
	var pins []Pin
	if err := v.UnmarshalKey("pins", &pins); err != nil {
		return nil, errx.Wrap(ErrParseConfig, err)
	}
	return &legacyConfig{
		Project: v.GetString("project"),
		Pins:    pins,
	}, nil
}

// Reference is one dependency in the newer project-reference format.
type Reference struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Path    string `json:"path,omitempty"`
}

// ReferenceFile is the on-disk shape of the new format.
type ReferenceFile struct {
	Version    int         `json:"version"`
	Project    string      `json:"project,omitempty"`
	References []Reference `json:"references"`
}

// referenceFileVersion is the current format revision.
const referenceFileVersion = 1
