package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/idbstore/pkg/config"
	"github.com/cuemby/idbstore/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

var cfg config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "idbctl",
	Short:   "idbctl - a command-line client for the idbstore storage engine",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("idbctl version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("storage-path", "", "Storage directory (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format (overrides config)")

	cobra.OnInitialize(initConfigAndLogging)

	rootCmd.AddCommand(listDatabasesCmd)
	rootCmd.AddCommand(createStoreCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(deleteDatabaseCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfigAndLogging() {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if v, _ := rootCmd.PersistentFlags().GetString("storage-path"); v != "" {
		cfg.StoragePath = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := rootCmd.PersistentFlags().GetBool("log-json"); v {
		cfg.LogJSON = true
	}

	log.Init(cfg.LogConfig())
}
