package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labelforge/labelforge/internal/config"
)

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the configured project's annotation schema",
		Long:  `Display the configured project's jobs and category lists, and a snapshot of how many assets the first page holds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}

	return cmd
}

func runStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store := newStoreClient(cfg)

	project, err := store.Project(ctx, cfg.ProjectID)
	if err != nil {
		return err
	}

	fmt.Printf("Project: %s (%s)\n", project.Title, project.ID)
	for _, job := range project.Jobs {
		marker := " "
		if job.Name == cfg.JobName {
			marker = "*"
		}
		fmt.Printf(" %s Job %s: %s\n", marker, job.Name, strings.Join(job.Categories, ", "))
	}

	assets, err := store.Assets(ctx, cfg.ProjectID, cfg.PageSize, 0)
	if err != nil {
		return err
	}
	labeled := 0
	for _, asset := range assets {
		for _, label := range asset.Labels {
			if label.Type.HumanAuthored() {
				labeled++
				break
			}
		}
	}
	fmt.Printf("First page: %d assets, %d with human labels\n", len(assets), labeled)

	return nil
}
