package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/statcube/internal/lookup"
)

// NewLookupCommand creates the lookup command group.
func NewLookupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Attach reference tables to dimensions and the measure",
	}
	cmd.AddCommand(newLookupAttachCommand())
	cmd.AddCommand(newLookupShowCommand())
	cmd.AddCommand(newLookupRowsCommand())
	return cmd
}

func newLookupShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <lookup-table-id>",
		Short: "Show a lookup table's detected shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid lookup table id: %w", err)
			}
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			meta, err := app.openMeta(cmd.Context())
			if err != nil {
				return err
			}
			lt, err := meta.GetLookupTable(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderLookupTable(cmd.OutOrStdout(), lt)
			return nil
		},
	}
}

func newLookupRowsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rows <dimension-id>",
		Short: "List a dimension's extracted lookup rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dimensionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid dimension id: %w", err)
			}
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			meta, err := app.openMeta(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := meta.ListDimensionRows(cmd.Context(), dimensionID)
			if err != nil {
				return err
			}
			renderDimensionRows(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func newLookupAttachCommand() *cobra.Command {
	var (
		dimension    string
		measure      bool
		headerLocale string
		joinColumn   string
		mimeType     string
	)
	cmd := &cobra.Command{
		Use:   "attach <revision-id> <file>",
		Short: "Attach a lookup table to a dimension or the measure",
		Long: `Attach an uploaded reference table to one of the dataset's dimensions
(--dimension) or to its measure (--measure). The table's headers are
classified using the header locale's vocabulary; the table is validated
against the fact values it describes before anything is persisted.`,
		Example: `  # Dimension lookup, headers in the default locale
  statcube lookup attach 6f1f... areas.csv --dimension 9c2a...

  # Measure lookup with Welsh headers
  statcube lookup attach 6f1f... measures.csv --measure --header-locale cy-GB`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			revisionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid revision id: %w", err)
			}
			if measure == (dimension != "") {
				return fmt.Errorf("exactly one of --dimension or --measure is required")
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

			meta, err := app.openMeta(cmd.Context())
			if err != nil {
				return err
			}
			eng, err := app.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			ext, err := lookup.New(lookup.Config{
				Engine:     eng,
				Meta:       meta,
				Locales:    app.locales,
				StagingDir: app.cfg.StagingDir,
				Logger:     app.logger,
			})
			if err != nil {
				return err
			}

			if headerLocale == "" {
				headerLocale = app.locales.Default()
			}
			up := lookup.Upload{
				Filename:     filepath.Base(args[1]),
				MimeType:     mimeType,
				Data:         data,
				HeaderLocale: headerLocale,
			}
			if joinColumn != "" {
				up.Override = &lookup.Override{JoinColumn: joinColumn}
			}

			if measure {
				lt, err := ext.AttachToMeasure(cmd.Context(), revisionID, up)
				if err != nil {
					if renderValidationError(cmd.ErrOrStderr(), err) {
						return fmt.Errorf("lookup rejected")
					}
					return err
				}
				cmd.Printf("lookup table %s attached to measure\n", lt.ID)
				return nil
			}

			dimensionID, err := uuid.Parse(dimension)
			if err != nil {
				return fmt.Errorf("invalid dimension id: %w", err)
			}
			lt, err := ext.AttachToDimension(cmd.Context(), revisionID, dimensionID, up)
			if err != nil {
				if renderValidationError(cmd.ErrOrStderr(), err) {
					return fmt.Errorf("lookup rejected")
				}
				return err
			}
			cmd.Printf("lookup table %s attached to dimension %s\n", lt.ID, dimensionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&dimension, "dimension", "", "Dimension id to attach to")
	cmd.Flags().BoolVar(&measure, "measure", false, "Attach to the dataset's measure")
	cmd.Flags().StringVar(&headerLocale, "header-locale", "", "Locale of the table's headers (default: the default locale)")
	cmd.Flags().StringVar(&joinColumn, "join-column", "", "Join column override")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type override (default: inferred from the file)")
	return cmd
}
