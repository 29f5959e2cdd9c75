package cli

import (
	"fmt"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/alpm"
	"github.com/glorpus-work/alpmdb/pkg/config"
	"github.com/glorpus-work/alpmdb/pkg/db"
	"github.com/glorpus-work/alpmdb/pkg/fetch"
)

// These variables will be set by the main package
var (
	ConfigPath   *string
	RootPath     *string
	DatabasePath *string
	Verbose      *bool
)

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}

// loadConfig loads the configuration, applies the command line overrides and configures
// logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := loadConfigFile()
	if err != nil {
		return nil, err
	}

	if RootPath != nil && *RootPath != "" {
		cfg.RootPath = *RootPath
	}
	if DatabasePath != nil && *DatabasePath != "" {
		cfg.DatabasePath = *DatabasePath
	}

	setupLogging(cfg)
	return cfg, nil
}

// loadConfigFile loads the configuration file without the command line overrides.
func loadConfigFile() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openHandle builds a handle from the configuration and registers its repositories.
func openHandle(cfg *config.Config) (*alpm.Handle, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	lineEnding, err := cfg.DescLineEnding()
	if err != nil {
		return nil, err
	}

	h, err := alpm.NewBuilder().
		WithRootPath(cfg.RootPath).
		WithDatabasePath(cfg.DatabasePath).
		WithSyncExtension(cfg.SyncExtension).
		WithLineEnding(lineEnding).
		WithSignatureLevel(level).
		WithFetcher(fetch.NewHTTPClient(cfg.Settings.HTTPTimeout, cfg.Settings.UserAgent)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, repo := range cfg.Repositories {
		if err := registerRepository(h, repo, cfg.Arch()); err != nil {
			_ = h.Close()
			return nil, err
		}
	}
	return h, nil
}

func registerRepository(h *alpm.Handle, repo *config.RepositoryConfig, arch string) error {
	sdb, err := h.RegisterSyncDatabase(repo.Name)
	if err != nil {
		return fmt.Errorf("failed to register repository %s: %w", repo.Name, err)
	}
	level, err := repo.Level()
	if err != nil {
		return err
	}
	usage, err := repo.DatabaseUsage()
	if err != nil {
		return err
	}
	sdb.SetSignatureLevel(level)
	sdb.SetUsage(usage)
	for _, server := range repo.ExpandedServers(arch) {
		if err := sdb.AddServer(server); err != nil {
			return err
		}
	}
	return nil
}

// withHandle loads the configuration, opens a handle, runs fn and closes the handle.
func withHandle(fn func(h *alpm.Handle) error) error {
	return withConfigHandle(func(_ *config.Config, h *alpm.Handle) error {
		return fn(h)
	})
}

func withConfigHandle(fn func(cfg *config.Config, h *alpm.Handle) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := openHandle(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := h.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(cfg, h)
}

// selectDatabase returns the local database for an empty name, otherwise the named sync
// database.
func selectDatabase(h *alpm.Handle, name string) (db.Database, error) {
	if name == "" || name == db.LocalDatabaseName {
		return h.LocalDatabase()
	}
	return h.SyncDatabase(name)
}
