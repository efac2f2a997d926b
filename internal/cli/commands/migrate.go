package commands

import (
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending metadata store migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			meta, err := app.openMeta(cmd.Context())
			if err != nil {
				return err
			}
			if err := meta.Migrate(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("metadata store is up to date")
			return nil
		},
	}
}
