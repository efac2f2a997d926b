package commands

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/statcube/internal/cube"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	var buildType string
	cmd := &cobra.Command{
		Use:   "build [revision-id]",
		Short: "Build a revision's cube",
		Long: `Build a cube from a revision's table lineage. The cube is assembled in
a scratch schema and swapped in atomically; a failed build never disturbs a
previously published cube.

Build types:
  fullCube        fact table, description tables, core views, filter table
  baseCube        fact table only
  validationCube  validate the fact table without publishing anything
  draftCubes      rebuild every unpublished revision (no revision argument)
  allCubes        rebuild every revision (no revision argument)`,
		Example: `  statcube build 6f1f...
  statcube build 6f1f... --type validationCube
  statcube build --type draftCubes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bt := core.BuildType(buildType)
			if !core.ValidBuildType(bt) {
				return fmt.Errorf("unknown build type %q", buildType)
			}
			var revisionID *uuid.UUID
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid revision id: %w", err)
				}
				revisionID = &id
			}
			if bt.Bulk() == (revisionID != nil) {
				if bt.Bulk() {
					return fmt.Errorf("build type %s takes no revision argument", bt)
				}
				return fmt.Errorf("build type %s requires a revision argument", bt)
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			b, err := newBuilder(cmd, app)
			if err != nil {
				return err
			}
			bl, err := b.Build(cmd.Context(), revisionID, bt)
			if bl != nil {
				renderBuildLog(cmd.OutOrStdout(), bl)
			}
			if errors.Is(err, cube.ErrBuildFailed) {
				// Details are in the build log above.
				return fmt.Errorf("build failed")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&buildType, "type", string(core.BuildFullCube), "Build type")
	return cmd
}

func newBuilder(cmd *cobra.Command, app *app) (*cube.Builder, error) {
	meta, err := app.openMeta(cmd.Context())
	if err != nil {
		return nil, err
	}
	eng, err := app.openEngine(cmd.Context())
	if err != nil {
		return nil, err
	}
	return cube.New(cube.Config{
		Engine:  eng,
		Meta:    meta,
		Locales: app.locales,
		Logger:  app.logger,
	})
}
