package main

import (
	"log"

	"tomobs/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tomobs",
	Short: "Observation records and data products of a target observation manager",
	Long: `tomobs submits observation requests to telescope facilities, records the
resulting observations, keeps their status current and manages the data
products they produce.

Configuration is read from the environment, after loading .env when present.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(updateStatusCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}
