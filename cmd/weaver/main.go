package main

import (
	"os"

	"github.com/alvmarrod/profile-weaver/internal/config"
	"github.com/alvmarrod/profile-weaver/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "weaver",
		Short:         "Collect profile cards from listing pages into a deduplicated store",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}
			level, err := logrus.ParseLevel(loaded.LogLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the JSON config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level from the config")

	root.AddCommand(
		newScrapeCmd(),
		newServeCmd(),
		newExportCmd(),
		newClearCmd(),
		newCountCmd(),
		newProxyCmd(),
		newUploadURLCmd(),
	)
	return root
}

func main() {
	// Configure logging
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := newRootCmd().Execute(); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
}
