package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewDatasetCommand creates the dataset command group.
func NewDatasetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage datasets and their revisions",
	}
	cmd.AddCommand(newDatasetCreateCommand())
	cmd.AddCommand(newDatasetReviseCommand())
	cmd.AddCommand(newDatasetPublishCommand())
	return cmd
}

func newDatasetCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <title>",
		Short: "Create a dataset with its first draft revision",
		Args:  cobra.ExactArgs(1),
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
			ds, err := meta.CreateDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rev, err := meta.CreateRevision(cmd.Context(), ds.ID)
			if err != nil {
				return err
			}
			cmd.Printf("dataset %s\nrevision %s\n", ds.ID, rev.ID)
			return nil
		},
	}
}

func newDatasetReviseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revise <dataset-id>",
		Short: "Open a new draft revision on a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			datasetID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid dataset id: %w", err)
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
			ds, err := meta.GetDataset(cmd.Context(), datasetID)
			if err != nil {
				return err
			}
			rev, err := meta.CreateRevision(cmd.Context(), ds.ID)
			if err != nil {
				return err
			}
			cmd.Printf("revision %s (index %d) on %q\n", rev.ID, rev.Index, ds.Title)
			return nil
		},
	}
}

func newDatasetPublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <revision-id>",
		Short: "Mark a revision as published",
		Long: `Mark a revision as published. Publishing is a metadata flag; the
revision's cube must already have been built with "statcube build".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			revisionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid revision id: %w", err)
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
			if err := meta.PublishRevision(cmd.Context(), revisionID); err != nil {
				return err
			}
			cmd.Printf("revision %s published\n", revisionID)
			return nil
		},
	}
}
