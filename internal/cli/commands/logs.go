package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/statcube/pkg/core"
)

// NewLogsCommand creates the logs command.
func NewLogsCommand() *cobra.Command {
	var (
		revision string
		status   string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "logs [build-id]",
		Short: "Show build logs",
		Long: `List build logs, newest first, or show one build in full including
its recorded build script.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			meta, err := app.openMeta(cmd.Context())
			if err != nil {
				return err
			}

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid build id: %w", err)
				}
				bl, err := meta.GetBuildLog(cmd.Context(), id)
				if err != nil {
					return err
				}
				renderBuildLog(cmd.OutOrStdout(), bl)
				return nil
			}

			filter := core.BuildLogFilter{
				Status: core.BuildStatus(status),
				Limit:  limit,
			}
			if revision != "" {
				id, err := uuid.Parse(revision)
				if err != nil {
					return fmt.Errorf("invalid revision id: %w", err)
				}
				filter.RevisionID = &id
			}
			logs, err := meta.ListBuildLogs(cmd.Context(), filter)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"id", "revision", "type", "status", "started", "elapsed", "error"})
			for _, bl := range logs {
				rev := ""
				if bl.RevisionID != nil {
					rev = bl.RevisionID.String()
				}
				t.AppendRow(table.Row{
					bl.ID, rev, bl.Type, bl.Status,
					bl.StartedAt.Format(time.RFC3339),
					bl.Elapsed.Round(time.Millisecond),
					bl.Error,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&revision, "revision", "", "Only logs for this revision")
	cmd.Flags().StringVar(&status, "status", "", "Only logs with this status")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of logs")
	return cmd
}
