// Package config loads, validates and saves the alpmdb YAML configuration: the root and
// database paths, the sync repositories with their mirrors, and general settings.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/alpmdb/pkg/db"
	"github.com/glorpus-work/alpmdb/pkg/desc"
	"github.com/glorpus-work/alpmdb/pkg/errors"
	"github.com/glorpus-work/alpmdb/pkg/fsutil"
	"github.com/glorpus-work/alpmdb/pkg/platform"
	"github.com/glorpus-work/alpmdb/pkg/signing"
)

// Config represents the application configuration.
type Config struct {
	// RootPath is the root of the managed system.
	RootPath string `yaml:"root_path"`
	// DatabasePath defaults to RootPath/var/lib/pacman when empty.
	DatabasePath  string `yaml:"database_path,omitempty"`
	SyncExtension string `yaml:"sync_extension"`
	// LineEnding of desc files: "unix", "windows", or empty for the platform default.
	LineEnding     string `yaml:"line_ending,omitempty"`
	SignatureLevel string `yaml:"signature_level"`
	// Architecture replaces $arch in server URLs; "auto" or empty detects it.
	Architecture string `yaml:"architecture,omitempty"`

	Repositories []*RepositoryConfig `yaml:"repositories"`

	Settings Settings `yaml:"settings"`
}

// RepositoryConfig is one sync database and its mirrors.
type RepositoryConfig struct {
	Name           string   `yaml:"name"`
	Servers        []string `yaml:"servers"`
	SignatureLevel string   `yaml:"signature_level,omitempty"`
	Usage          []string `yaml:"usage,omitempty"`
}

// Settings represents general application settings.
type Settings struct {
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	UserAgent    string        `yaml:"user_agent,omitempty"`
	OutputFormat string        `yaml:"output_format"` // text, json
	LogLevel     string        `yaml:"log_level"`     // debug, info, warn, error
}

// Default configuration values.
const (
	DefaultRootPath       = "/"
	DefaultHTTPTimeout    = 5 * time.Minute
	DefaultUserAgent      = "alpmdb/1.0"
	DefaultSignatureLevel = "required"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

var extensionPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RootPath:       DefaultRootPath,
		SyncExtension:  db.DefaultSyncExtension,
		SignatureLevel: DefaultSignatureLevel,
		Repositories:   []*RepositoryConfig{},
		Settings: Settings{
			HTTPTimeout:  DefaultHTTPTimeout,
			UserAgent:    DefaultUserAgent,
			OutputFormat: "text",
			LogLevel:     "info",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SaveConfig writes the configuration to path, replacing any existing file atomically.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := fsutil.EnsureFileDir(absPath); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrConfigDirectory, err.Error())
	}

	data, err := c.ToYAML()
	if err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomic(absPath, data, fsutil.FileModeDefault); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrConfigFileCreate, err.Error())
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrConfigEncode, err.Error())
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrConfigEncode, err.Error())
	}
	return buf.Bytes(), nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := c.validatePaths(); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrConfigValidation, err.Error())
	}
	if err := validateRepositories(c.Repositories); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrConfigValidation, err.Error())
	}
	if err := validateSettings(c.Settings); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrConfigValidation, err.Error())
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.RootPath == "" {
		return fmt.Errorf("root path cannot be empty")
	}
	if !extensionPattern.MatchString(c.SyncExtension) {
		return fmt.Errorf("sync extension %q must be alphanumeric", c.SyncExtension)
	}
	if _, err := desc.ParseLineEnding(c.LineEnding); err != nil {
		return err
	}
	if _, err := signing.ParseLevel(c.SignatureLevel); err != nil {
		return err
	}
	return nil
}

func validateRepositories(repos []*RepositoryConfig) error {
	repoNames := make(map[string]bool)
	for i, repo := range repos {
		if repo == nil {
			return fmt.Errorf("repository %d is empty", i)
		}
		if err := db.ValidateSyncName(repo.Name); err != nil {
			return fmt.Errorf("repository %d: %w", i, err)
		}
		if repoNames[repo.Name] {
			return fmt.Errorf("repository %q is configured more than once", repo.Name)
		}
		repoNames[repo.Name] = true
		if _, err := repo.Level(); err != nil {
			return fmt.Errorf("repository %q: %w", repo.Name, err)
		}
		if _, err := repo.DatabaseUsage(); err != nil {
			return fmt.Errorf("repository %q: %w", repo.Name, err)
		}
	}
	return nil
}

func validateSettings(s Settings) error {
	if s.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout cannot be negative")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[s.OutputFormat] {
		return fmt.Errorf("invalid output format %q, must be one of: text, json", s.OutputFormat)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", s.LogLevel)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := fsutil.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Level returns the handle-wide signature level.
func (c *Config) Level() (signing.Level, error) {
	return signing.ParseLevel(c.SignatureLevel)
}

// DescLineEnding returns the configured desc line ending.
func (c *Config) DescLineEnding() (desc.LineEnding, error) {
	return desc.ParseLineEnding(c.LineEnding)
}

// Arch returns the architecture used to expand server URLs.
func (c *Config) Arch() string {
	return platform.ResolveArch(c.Architecture)
}

// ExpandedServers returns the repository's servers with $repo and $arch replaced.
func (rc *RepositoryConfig) ExpandedServers(arch string) []string {
	out := make([]string, len(rc.Servers))
	for i, s := range rc.Servers {
		out[i] = platform.ExpandServer(s, rc.Name, arch)
	}
	return out
}

// GetDatabasePath returns the database path, derived from the root path when unset.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.RootPath, "var", "lib", "pacman")
}

// Level returns the repository's signature level. An unset level inherits the handle's.
func (rc *RepositoryConfig) Level() (signing.Level, error) {
	return signing.ParseLevel(rc.SignatureLevel)
}

// DatabaseUsage returns the repository's usage flags. No usage means all.
func (rc *RepositoryConfig) DatabaseUsage() (db.Usage, error) {
	return db.ParseUsage(rc.Usage)
}

// AddRepository adds a repository to the configuration.
// Returns an error if a repository with the same name already exists.
func (c *Config) AddRepository(name string, servers ...string) error {
	if err := db.ValidateSyncName(name); err != nil {
		return err
	}
	if c.GetRepository(name) != nil {
		return fmt.Errorf("repository %q already exists", name)
	}
	c.Repositories = append(c.Repositories, &RepositoryConfig{
		Name:    name,
		Servers: servers,
	})
	return nil
}

// RemoveRepository removes a repository from the configuration.
func (c *Config) RemoveRepository(name string) bool {
	for i, repo := range c.Repositories {
		if repo.Name == name {
			c.Repositories = append(c.Repositories[:i], c.Repositories[i+1:]...)
			return true
		}
	}
	return false
}

// GetRepository gets a repository configuration by name.
func (c *Config) GetRepository(name string) *RepositoryConfig {
	for _, repo := range c.Repositories {
		if repo.Name == name {
			return repo
		}
	}
	return nil
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.RootPath == "" {
		c.RootPath = defaults.RootPath
	}
	if c.SyncExtension == "" {
		c.SyncExtension = defaults.SyncExtension
	}
	if c.SignatureLevel == "" {
		c.SignatureLevel = defaults.SignatureLevel
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.UserAgent == "" {
		c.Settings.UserAgent = defaults.Settings.UserAgent
	}
	if c.Settings.OutputFormat == "" {
		c.Settings.OutputFormat = defaults.Settings.OutputFormat
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
	if c.Repositories == nil {
		c.Repositories = []*RepositoryConfig{}
	}
}
