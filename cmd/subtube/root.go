package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"subtube/internal/config"
	"subtube/pkg/log"
)

var (
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:           "subtube",
	Short:         "Download and translate YouTube subtitles",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := log.ParseLevel(logLevel)
		log.InitLogger(level)

		if logFile == "" {
			logFile = os.Getenv("LOG_FILE")
		}
		if logFile != "" {
			// The file handle lives for the whole process.
			fl, err := log.NewFileLogger(logFile, level)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			log.SetLogger(fl.Logger)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stdout (or set LOG_FILE)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
}

func loadConfig() (*config.Config, error) {
	return config.NewFromEnv()
}
