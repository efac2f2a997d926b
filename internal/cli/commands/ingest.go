package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/statcube/internal/ingest"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand() *cobra.Command {
	var (
		action   string
		mimeType string
	)
	cmd := &cobra.Command{
		Use:   "ingest <revision-id> <file>",
		Short: "Upload a data table into a draft revision",
		Long: `Upload a data table file (CSV, JSON or Parquet) into a draft revision.
The file is validated by loading it into the analytical engine; on success a
durable copy is kept in object storage and the table's columns are recorded.`,
		Example: `  # First table of a dataset
  statcube ingest 6f1f... observations.csv

  # A revision table superseding earlier facts
  statcube ingest 6f1f... corrections.csv --action add_revise`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			revisionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid revision id: %w", err)
			}
			act := core.DataTableAction(action)
			if act != core.ActionAdd && act != core.ActionAddRevise {
				return fmt.Errorf("unknown action %q (want add or add_revise)", action)
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			ing, err := newIngestor(cmd, app)
			if err != nil {
				return err
			}
			dt, err := ing.Ingest(cmd.Context(), revisionID, filepath.Base(args[1]), mimeType, data, act)
			if err != nil {
				if renderValidationError(cmd.ErrOrStderr(), err) {
					return fmt.Errorf("ingestion rejected")
				}
				return err
			}
			cmd.Printf("data table %s (%s, %d columns)\n", dt.ID, dt.FileType, len(dt.Columns))
			return nil
		},
	}
	cmd.Flags().StringVar(&action, "action", "add", "Table action (add|add_revise)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type override (default: inferred from the file)")
	return cmd
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "preview <data-table-id>",
		Short: "Show the first rows of an ingested data table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid data table id: %w", err)
			}
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			ing, err := newIngestor(cmd, app)
			if err != nil {
				return err
			}
			cols, rows, err := ing.Preview(cmd.Context(), tableID, limit)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			header := make(table.Row, len(cols))
			for i, c := range cols {
				header[i] = c
			}
			t.AppendHeader(header)
			for _, r := range rows {
				row := make(table.Row, len(r))
				for i, v := range r {
					row[i] = v
				}
				t.AppendRow(row)
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of rows to show")
	return cmd
}

func newIngestor(cmd *cobra.Command, app *app) (*ingest.Ingestor, error) {
	meta, err := app.openMeta(cmd.Context())
	if err != nil {
		return nil, err
	}
	eng, err := app.openEngine(cmd.Context())
	if err != nil {
		return nil, err
	}
	store, err := app.openStorage(cmd.Context())
	if err != nil {
		return nil, err
	}
	return ingest.New(ingest.Config{
		Engine:     eng,
		Meta:       meta,
		Storage:    store,
		StagingDir: app.cfg.StagingDir,
		Logger:     app.logger,
	})
}
