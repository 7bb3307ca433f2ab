package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/prohmpiriya/eventdesk/pkg/config"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags
var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "eventdesk",
		Short:         "EventDesk - multi-tenant event finance and operations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "env file to load instead of .env")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(financeCmd())
	rootCmd.AddCommand(webhooksCmd())
	rootCmd.AddCommand(registrationsCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(notifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig preloads .env.local into the environment, then reads config through viper
// and initializes the global logger
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(".env.local"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env.local: %w", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadWithPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if cfg.App.Version == "" || Version != "dev" {
		cfg.App.Version = Version
	}

	level := "info"
	if cfg.App.Debug {
		level = "debug"
	}
	if err := logger.Init(&logger.Config{
		Level:       level,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
		Development: cfg.IsDevelopment(),
		OutputPath:  "stdout",
	}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, nil
}
