package analyze

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	tt "github.com/gnolang/undertaker/internal/types"
	"github.com/gnolang/undertaker/scanner"
)

// DefaultConfigFile is looked up in the working directory.
const DefaultConfigFile = ".undertaker.yaml"

// Environment variables overriding the configuration file.
const (
	EnvModel   = "UNDERTAKER_MODEL"
	EnvTimeout = "UNDERTAKER_TIMEOUT"
)

// Config represents the overall configuration of a run.
type Config struct {
	Name string `yaml:"name"`
	// Model is the path of the configuration model. Without one only
	// code defects are reported.
	Model string `yaml:"model,omitempty"`
	// Timeout bounds the whole run, QueryTimeout every single
	// satisfiability query.
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	QueryTimeout time.Duration `yaml:"query_timeout,omitempty"`
	// Prefix of configuration symbols.
	Prefix     string                   `yaml:"prefix,omitempty"`
	Extensions []string                 `yaml:"extensions,omitempty"`
	Exclude    []string                 `yaml:"exclude,omitempty"`
	Rules      map[string]tt.ConfigRule `yaml:"rules"`
}

func DefaultConfig() Config {
	rules := make(map[string]tt.ConfigRule, len(tt.Rules))
	for _, name := range tt.Rules {
		rules[name] = tt.ConfigRule{Severity: tt.DefaultSeverity(name)}
	}
	return Config{
		Name:         "undertaker",
		Timeout:      5 * time.Minute,
		QueryTimeout: 10 * time.Second,
		Prefix:       "CONFIG_",
		Extensions:   append([]string(nil), scanner.DefaultExtensions...),
		Rules:        rules,
	}
}

// ParseConfigurationFile reads path over the defaults. A missing default
// file is not an error.
func ParseConfigurationFile(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		path = DefaultConfigFile
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && path == DefaultConfigFile {
		return config, nil
	}
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// ApplyEnv overrides the model and the timeout from the environment.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvModel); ok && v != "" {
		c.Model = v
	}
	if v, ok := os.LookupEnv(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// WriteConfigurationFile stores c as YAML at path.
func WriteConfigurationFile(path string, c Config) error {
	d, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}
