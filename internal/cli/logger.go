package cli

import (
	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/config"
)

// setupLogging initializes the global logger from the configuration. --verbose wins over the
// configured level.
func setupLogging(cfg *config.Config) {
	level := cfg.Settings.LogLevel
	if Verbose != nil && *Verbose {
		level = "debug"
	}
	logger.InitLogger(level, logger.OutputFormat(cfg.Settings.OutputFormat))
}
