package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"
)

//go:embed config.yaml
var ConfigTmpl []byte

type (
	TokensConfig struct {
		ExternalPath string `yaml:"external_path,omitempty" validate:"omitempty,filepath"`
	}

	DiffConfig struct {
		SnapshotPath string `yaml:"snapshot_path,omitempty" validate:"omitempty,filepath"`
	}

	OutputConfig struct {
		Mode OutputMode `yaml:"mode" validate:"gte=0,lte=3"`
		Path string     `yaml:"path,omitempty" validate:"omitempty,filepath"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Tokens    TokensConfig   `yaml:"tokens"`
		Diff      DiffConfig     `yaml:"diff"`
		Output    OutputConfig   `yaml:"output"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

func unmarshalConfig(data []byte, cfg *Config, validateNow bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if validateNow {
		if err := validator.New().Struct(cfg); err != nil {
			return nil, err
		}
		if err := ensureDestinationDirs(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ensureDestinationDirs creates the parent directory of every
// configured output/log/report destination before anything tries to
// open it for writing.
func ensureDestinationDirs(cfg *Config) error {
	for _, dest := range []string{
		cfg.Logging.FileLogger.Destination,
		cfg.Reporting.Destination,
		cfg.Output.Path,
	} {
		if dest == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %q: %w", dest, err)
		}
	}
	return nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposing its values on top of the embedded default configuration to
// provide sane defaults, and performs validation.
func LoadConfiguration(path string) (*Config, error) {
	haveFile := len(path) > 0

	cfg, err := unmarshalConfig(ConfigTmpl, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process default configuration: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare returns the embedded default configuration as a byte slice,
// suitable for writing out as a starting point for a user config file.
func Prepare() ([]byte, error) {
	return append([]byte{}, ConfigTmpl...), nil
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
