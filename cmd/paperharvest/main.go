// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paperharvest CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the paperharvest CLI.
var rootCmd = &cobra.Command{
	Use:   "paperharvest",
	Short: "Resumable harvester for machine learning conference proceedings",
	Long: `paperharvest crawls conference proceedings sites, extracts paper metadata,
and downloads PDFs. Runs are checkpointed so an interrupted harvest resumes
where it left off, and every request respects the source's politeness policy.

Each operation is a subcommand: harvest pulls one or more proceedings years,
sources lists the supported sites, and history shows past runs.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paperharvest.yaml or ~/.config/paperharvest/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "base directory for metadata and papers")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "human-readable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paperharvest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paperharvest"))
		}
	}

	viper.SetEnvPrefix("PAPERHARVEST")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
