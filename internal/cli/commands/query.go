package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/statcube/internal/query"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// NewQueryCommand creates the query command group.
func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Create and run cached cube queries",
	}
	cmd.AddCommand(newQueryCreateCommand())
	cmd.AddCommand(newQueryShowCommand())
	cmd.AddCommand(newQueryRunCommand())
	cmd.AddCommand(newQueryRebuildCommand())
	cmd.AddCommand(newQueryPurgeCommand())
	return cmd
}

func newQueryCreateCommand() *cobra.Command {
	var (
		filters      []string
		sorts        []string
		pivotRows    []string
		pivotColumns []string
		displayNames bool
		displayVals  bool
		formatVals   bool
	)
	cmd := &cobra.Command{
		Use:   "create <dataset-id> <revision-id>",
		Short: "Create (or reuse) a cached query against a revision's cube",
		Long: `Create a cached query. Requests with the same dataset, revision and
options share one entry: repeating a request returns the existing query id.`,
		Example: `  statcube query create 6f1f... 9c2a... \
      --filter "AreaCode=W06000015,W06000011" --sort YearCode \
      --display-values --format-values`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			datasetID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid dataset id: %w", err)
			}
			revisionID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid revision id: %w", err)
			}
			opts := core.QueryOptions{
				PivotRows:          pivotRows,
				PivotColumns:       pivotColumns,
				DisplayColumnNames: displayNames,
				DisplayValues:      displayVals,
				FormatValues:       formatVals,
			}
			for _, f := range filters {
				col, vals, ok := strings.Cut(f, "=")
				if !ok || col == "" || vals == "" {
					return fmt.Errorf("malformed filter %q (want column=value[,value...])", f)
				}
				opts.Filters = append(opts.Filters, core.FilterOption{
					Column: col,
					Values: strings.Split(vals, ","),
				})
			}
			for _, s := range sorts {
				col, desc := strings.CutSuffix(s, ":desc")
				opts.Sort = append(opts.Sort, core.SortOption{Column: col, Descending: desc})
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			svc, err := newQueryService(cmd, app)
			if err != nil {
				return err
			}
			entry, err := svc.GetOrCreate(cmd.Context(), datasetID, revisionID, opts)
			if err != nil {
				return err
			}
			renderQueryEntry(cmd, entry)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Filter as column=value[,value...]; repeatable")
	cmd.Flags().StringArrayVar(&sorts, "sort", nil, "Sort column, append :desc for descending; repeatable")
	cmd.Flags().StringSliceVar(&pivotRows, "pivot-rows", nil, "Pivot row axis columns")
	cmd.Flags().StringSliceVar(&pivotColumns, "pivot-columns", nil, "Pivot column axis columns")
	cmd.Flags().BoolVar(&displayNames, "display-column-names", false, "Use human-readable column names")
	cmd.Flags().BoolVar(&displayVals, "display-values", false, "Use human-readable values")
	cmd.Flags().BoolVar(&formatVals, "format-values", false, "Apply the measure's display format to data values")
	return cmd
}

func newQueryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <query-id>",
		Short: "Show a cached query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			cache, err := app.openCache(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := cache.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("no query %q", args[0])
			}
			renderQueryEntry(cmd, entry)
			for tag, sql := range entry.SQLByLocale {
				cmd.Printf("\n-- %s\n%s\n", tag, sql)
			}
			return nil
		},
	}
}

func newQueryRunCommand() *cobra.Command {
	var localeTag string
	cmd := &cobra.Command{
		Use:   "run <query-id>",
		Short: "Execute a cached query and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			cache, err := app.openCache(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := cache.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("no query %q", args[0])
			}
			if localeTag == "" {
				localeTag = app.locales.Default()
			}
			tag, err := app.locales.Resolve(localeTag)
			if err != nil {
				return err
			}
			sqlText, ok := entry.SQLByLocale[tag]
			if !ok {
				return fmt.Errorf("query %s has no %s variant", entry.ID, tag)
			}

			meta, err := app.openMeta(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := meta.DB().QueryContext(cmd.Context(), sqlText)
			if err != nil {
				return err
			}
			defer rows.Close()
			return renderRows(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&localeTag, "locale", "", "Locale variant to run (default: the default locale)")
	return cmd
}

func newQueryRebuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <revision-id> ...",
		Short: "Regenerate cached queries after their cubes were rebuilt",
		Long: `Regenerate every cached query touching the given revisions, in place:
query ids survive a rebuild. Entries that can no longer be generated are
removed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			revisionIDs := make([]uuid.UUID, 0, len(args))
			for _, a := range args {
				id, err := uuid.Parse(a)
				if err != nil {
					return fmt.Errorf("invalid revision id %q: %w", a, err)
				}
				revisionIDs = append(revisionIDs, id)
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			svc, err := newQueryService(cmd, app)
			if err != nil {
				return err
			}
			return svc.RebuildForRevisions(cmd.Context(), revisionIDs)
		},
	}
}

func newQueryPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove cached queries for unpublished revisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			svc, err := newQueryService(cmd, app)
			if err != nil {
				return err
			}
			n, err := svc.PurgeUnpublished(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("purged %d queries\n", n)
			return nil
		},
	}
}

func newQueryService(cmd *cobra.Command, app *app) (*query.Service, error) {
	meta, err := app.openMeta(cmd.Context())
	if err != nil {
		return nil, err
	}
	cache, err := app.openCache(cmd.Context())
	if err != nil {
		return nil, err
	}
	return query.New(query.Config{
		Cache:   cache,
		CubeDB:  meta.DB(),
		Meta:    meta,
		Locales: app.locales,
		Logger:  app.logger,
	})
}

func renderQueryEntry(cmd *cobra.Command, entry *core.QueryEntry) {
	t := newTable(cmd.OutOrStdout())
	t.AppendRow(table.Row{"id", entry.ID})
	t.AppendRow(table.Row{"dataset", entry.DatasetID})
	t.AppendRow(table.Row{"revision", entry.RevisionID})
	t.AppendRow(table.Row{"total rows", entry.TotalRows})
	t.AppendRow(table.Row{"locales", strings.Join(sortedKeys(entry.SQLByLocale), ", ")})
	t.Render()
}
