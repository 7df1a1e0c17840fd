package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/job-harvester/internal/config"
	"github.com/alvmarrod/job-harvester/internal/logging"
	"github.com/alvmarrod/job-harvester/internal/version"
)

var (
	// cfgFile holds the path passed with --config
	cfgFile string

	// debug forces debug logging for every command
	debug bool

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "harvester",
		Short:         "Harvest recruiter contacts and job postings from job boards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(),
		newRunCommand(),
		newBatchesCommand(),
		newRecordsCommand(),
		newSourcesCommand(),
		newVersionCommand(),
	)

	return root
}

// Execute runs the root command
func Execute() error {
	return newRootCommand().ExecuteContext(context.Background())
}

// initConfig loads .env, the config file and the environment, then
// configures logging
func initConfig() error {
	// .env is optional
	_ = godotenv.Load()

	loaded, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logging.Configure(loaded.LogLevel, loaded.LogFormat, debug); err != nil {
		return err
	}

	cfg = loaded
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "harvester version %s\n", version.Version)
		},
	}
}
