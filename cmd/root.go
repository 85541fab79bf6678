/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/reckon-app/apiserver/config"
	"github.com/reckon-app/apiserver/internal/logging"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reckon",
	Short: "Reckon user and authentication API",
	Long: `Reckon serves user management and bearer-token authentication over HTTP.

	reckon server
	reckon migrate up
	reckon user create-superuser --email admin@example.com --password ...`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and builds the process logger.
func loadConfig() (config.Config, *logging.SlogLogger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(cfg.Log, os.Stderr), nil
}
