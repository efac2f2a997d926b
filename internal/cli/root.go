// Package cli provides the command-line interface for statcube.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/statcube/internal/cli/commands"
	"github.com/leapstack-labs/statcube/internal/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "statcube",
		Short: "statcube - statistical cube build and query pipeline",
		Long: `statcube ingests a publisher's data tables, classifies their columns,
attaches multilingual lookup tables, builds queryable cubes revision by
revision, and serves cached queries against the published cubes.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			cmd.SetContext(commands.WithConfig(cmd.Context(), cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}} (` + GitCommit + `)
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./statcube.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("database-host", "", "Metadata store host")
	rootCmd.PersistentFlags().Int("database-port", 0, "Metadata store port")
	rootCmd.PersistentFlags().String("database-name", "", "Metadata store database name")
	rootCmd.PersistentFlags().String("database-username", "", "Metadata store user")
	rootCmd.PersistentFlags().String("database-password", "", "Metadata store password")
	rootCmd.PersistentFlags().String("engine-path", "", "Analytical engine database file")
	rootCmd.PersistentFlags().String("storage-backend", "", "Object storage backend (fs|s3)")
	rootCmd.PersistentFlags().String("storage-root-dir", "", "Object storage root directory (fs backend)")
	rootCmd.PersistentFlags().String("cache-path", "", "Query cache database file")
	rootCmd.PersistentFlags().String("staging-dir", "", "Staging directory for uploaded files")

	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewDatasetCommand())
	rootCmd.AddCommand(commands.NewIngestCommand())
	rootCmd.AddCommand(commands.NewPreviewCommand())
	rootCmd.AddCommand(commands.NewClassifyCommand())
	rootCmd.AddCommand(commands.NewLookupCommand())
	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewLogsCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
