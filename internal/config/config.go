// Package config loads modwire settings from modwire.toml or modwire.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"modwire/internal/meta"
	"modwire/internal/provision"
	"modwire/internal/validate"
)

// FileNames are the config files looked up in each directory, in order.
var FileNames = []string{"modwire.toml", "modwire.yaml", "modwire.yml"}

// Color modes accepted by [output].color and MODWIRE_COLOR.
const (
	ColorAuto = "auto"
	ColorOn   = "on"
	ColorOff  = "off"
)

// Config holds all modwire configuration.
type Config struct {
	Project ProjectConfig             `toml:"project" yaml:"project"`
	Kinds   map[string]provision.Kind `toml:"kinds" yaml:"kinds"`
	Output  OutputConfig              `toml:"output" yaml:"output"`

	// Path is the file the config was read from; empty for defaults.
	Path string `toml:"-" yaml:"-"`
}

// ProjectConfig overrides the detected project layout.
type ProjectConfig struct {
	SourceRoot    string `toml:"source_root" yaml:"source_root"`
	ResourcesRoot string `toml:"resources_root" yaml:"resources_root"`
	BasePackage   string `toml:"base_package" yaml:"base_package" validate:"javapkg"`
	IncludeTests  bool   `toml:"include_tests" yaml:"include_tests"`
}

// OutputConfig controls terminal output.
type OutputConfig struct {
	Color       string `toml:"color" yaml:"color" validate:"omitempty,oneof=auto on off"`
	DiffContext int    `toml:"diff_context" yaml:"diff_context" validate:"min=0"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Output: OutputConfig{Color: ColorAuto, DiffContext: 3},
	}
}

// Find walks up from startDir looking for a config file. ok is false when
// none exists up to the filesystem root.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads the config at path, or discovers one from startDir when path is
// empty. A missing file yields defaults; a malformed one is an error.
// Environment overrides are applied last.
func Load(path, startDir string) (*Config, error) {
	if path == "" {
		found, ok, err := Find(startDir)
		if err != nil {
			return nil, err
		}
		if !ok {
			cfg := Default()
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		path = found
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// LoadFile decodes a single config file chosen by its extension.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			keys := make([]string, 0, len(undec))
			for _, k := range undec {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	cfg.Path = path
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("MODWIRE_BASE_PACKAGE")); v != "" {
		c.Project.BasePackage = v
	}
	if v := strings.TrimSpace(os.Getenv("MODWIRE_COLOR")); v != "" {
		c.Output.Color = strings.ToLower(v)
	}
}

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("javapkg", func(fl validator.FieldLevel) bool {
		return validate.PackageName(fl.Field().String()) == nil
	})
	return v
}

// Validate checks field values against their validate tags. Errors name the
// offending key as it is spelled in modwire.toml.
func (c *Config) Validate() error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation failed: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := fe.Namespace()
		if _, rest, ok := strings.Cut(key, "."); ok {
			key = rest
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("invalid %s %q (%s)", key, fmt.Sprint(fe.Value()), rule))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Root is the directory that relative project paths are resolved against:
// the config file's directory, or fallback when no file was read.
func (c *Config) Root(fallback string) string {
	if c.Path == "" {
		return fallback
	}
	return filepath.Dir(c.Path)
}

// Overrides converts the [project] section for meta.ResolveLayout.
func (c *Config) Overrides() meta.Overrides {
	return meta.Overrides{
		SourceRoot:    c.Project.SourceRoot,
		ResourcesRoot: c.Project.ResourcesRoot,
		BasePackage:   c.Project.BasePackage,
	}
}

// KindTable returns the built-in kinds with [kinds.*] entries merged in.
func (c *Config) KindTable() provision.Table {
	return provision.Builtin().Merge(c.Kinds)
}
