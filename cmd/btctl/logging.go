package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"btctl/internal/config"
)

// configureLogger builds the command logger on top of the config file's
// log_level. Precedence: --log-level wins over --verbose, which wins over
// the config value. An unparseable config value degrades to panic level
// (silent), never an error.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	logger := cfg.NewLogger()

	levelStr, _ := cmd.Flags().GetString("log-level")
	verbose, _ := cmd.Flags().GetBool("verbose")

	switch {
	case levelStr != "":
		level, err := logrus.ParseLevel(levelStr)
		if err != nil || level < logrus.ErrorLevel || level > logrus.DebugLevel {
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
		}
		logger.SetLevel(level)
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger, nil
}
