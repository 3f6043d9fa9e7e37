package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// TOMLLoader implements the ConfigLoader interface using TOML files
type TOMLLoader struct {
	globalPath string
	localName  string
	workDir    string
}

// NewTOMLLoader creates a new TOML configuration loader
func NewTOMLLoader() *TOMLLoader {
	homeDir, _ := os.UserHomeDir()
	workDir, _ := os.Getwd()

	return &TOMLLoader{
		globalPath: filepath.Join(homeDir, ".config", "bulletin", "config.toml"),
		localName:  "bulletin.toml",
		workDir:    workDir,
	}
}

// Load reads the configuration at path on top of the defaults. A missing file is created
// with the defaults first.
func (l *TOMLLoader) Load(ctx context.Context, path string) (*entities.Config, error) {
	if path == "" {
		path = l.DefaultPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.CreateDefaults(ctx, path); err != nil {
			return nil, fmt.Errorf("creating defaults: %w", err)
		}
	}

	return l.loadConfig(path)
}

// DefaultPath returns bulletin.toml in the working directory when present, otherwise the
// global configuration path
func (l *TOMLLoader) DefaultPath() string {
	local := l.GetLocalPath(l.workDir)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	return l.globalPath
}

// CreateDefaults creates a default configuration file at the specified path
func (l *TOMLLoader) CreateDefaults(ctx context.Context, path string) error {
	if err := l.ensureConfigDir(path); err != nil {
		return err
	}

	defaults := GetDefaultConfig()

	file, err := os.Create(path) // #nosec G304 - path comes from the CLI or the global config path
	if err != nil {
		return fmt.Errorf("creating config file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	encoder := toml.NewEncoder(file)
	encoder.Indent = "  "

	if err := encoder.Encode(defaults); err != nil {
		return fmt.Errorf("encoding config to %s: %w", path, err)
	}

	return nil
}

// GetGlobalPath returns the path to the global configuration file
func (l *TOMLLoader) GetGlobalPath() string {
	return l.globalPath
}

// GetLocalPath returns the path to the local configuration file for a directory
func (l *TOMLLoader) GetLocalPath(dir string) string {
	return filepath.Join(dir, l.localName)
}

// loadConfig decodes path over the defaults and validates the result. Keys absent from
// the file keep their default value, including booleans.
func (l *TOMLLoader) loadConfig(path string) (*entities.Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is from controlled sources
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	config := GetDefaultConfig()
	meta, err := toml.Decode(string(data), config)
	if err != nil {
		return nil, fmt.Errorf("parsing TOML from %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	return config, nil
}

// ensureConfigDir ensures the configuration directory exists
func (l *TOMLLoader) ensureConfigDir(path string) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	return nil
}

var _ ports.ConfigLoader = (*TOMLLoader)(nil)
