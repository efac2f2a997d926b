package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/statcube/internal/classify"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// NewClassifyCommand creates the classify command.
func NewClassifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <dataset-id> <column>=<role> ...",
		Short: "Assign roles to a dataset's fact table columns",
		Long: `Assign a role to every column of the dataset's fact table. Every
physical column must be covered: exactly one data_values column, at most one
measure and one note_codes column, any number of dimension columns, and
ignore for columns to drop.

Roles are locked once the dataset's first revision is published.`,
		Example: `  statcube classify 6f1f... YearCode=dimension AreaCode=dimension \
      Data=data_values Measure=measure NoteCodes=note_codes RowRef=ignore`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			datasetID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid dataset id: %w", err)
			}
			assignments, err := parseAssignments(args[1:])
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
			cls, err := classify.New(meta, app.logger)
			if err != nil {
				return err
			}
			roleMap, err := cls.Classify(cmd.Context(), datasetID, assignments)
			if err != nil {
				if renderValidationError(cmd.ErrOrStderr(), err) {
					return fmt.Errorf("classification rejected")
				}
				return err
			}
			cmd.Printf("classified %d columns\n", len(roleMap))
			return nil
		},
	}
	return cmd
}

func parseAssignments(pairs []string) ([]classify.RoleAssignment, error) {
	out := make([]classify.RoleAssignment, 0, len(pairs))
	for _, p := range pairs {
		col, role, ok := strings.Cut(p, "=")
		if !ok || col == "" || role == "" {
			return nil, fmt.Errorf("malformed assignment %q (want column=role)", p)
		}
		r := core.ColumnRole(role)
		if !core.ValidRole(r) || r == core.RoleUnknown {
			return nil, fmt.Errorf("unknown role %q for column %q", role, col)
		}
		out = append(out, classify.RoleAssignment{ColumnName: col, Role: r})
	}
	return out, nil
}
