package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/labelforge/labelforge/internal/config"
	"github.com/labelforge/labelforge/internal/loop"
	"github.com/labelforge/labelforge/internal/publisher"
)

func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the labeling loop",
		Long: `Start the continuous labeling loop: fetch assets, train a classifier on the
labeled ones, publish predictions for the rest, sleep, repeat until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart()
		},
	}

	return cmd
}

func runStart() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	store := newStoreClient(cfg)

	// Unknown project or job is unrecoverable: fail before the loop starts.
	projectCtx, projectCancel := context.WithTimeout(ctx, cfg.CallTimeout)
	project, err := store.Project(projectCtx, cfg.ProjectID)
	projectCancel()
	if err != nil {
		log.Fatal().Err(err).Str("project_id", cfg.ProjectID).Msg("Failed to resolve project schema")
	}

	controller, err := loop.New(store, publisher.New(store), project, cfg.JobName, loop.Config{
		Interval:             cfg.Interval,
		CronSchedule:         cfg.CronSchedule,
		PageSize:             cfg.PageSize,
		MaxAssets:            cfg.MaxAssets,
		MinLabeled:           cfg.MinLabeled,
		CallTimeout:          cfg.CallTimeout,
		TrainBudget:          cfg.TrainBudget,
		CandidateBudget:      cfg.CandidateBudget,
		Seed:                 cfg.Seed,
		MaxFeatures:          cfg.MaxFeatures,
		ModelPrefix:          cfg.ModelPrefix,
		PublishProbabilities: cfg.PublishProbabilities,
		TrainWorkers:         cfg.TrainWorkers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure labeling loop")
	}

	if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
