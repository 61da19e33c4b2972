// Package loop orchestrates the continuous model-assisted labeling cycle:
// fetch assets, extract labels, train when there is enough signal, publish
// predictions, sleep, repeat. A cycle failure is logged and the loop keeps
// going; only the sleep point between cycles honors cancellation.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/labelforge/labelforge/internal/domain"
	"github.com/labelforge/labelforge/internal/features"
	"github.com/labelforge/labelforge/internal/labeling"
	"github.com/labelforge/labelforge/internal/publisher"
	"github.com/labelforge/labelforge/internal/trainer"
)

// Store is the read side of the annotation store the controller consumes.
type Store interface {
	Assets(ctx context.Context, projectID string, first, skip int) ([]domain.Asset, error)
}

// Publisher writes one prediction batch.
type Publisher interface {
	Publish(ctx context.Context, params publisher.Params) error
}

// Config tunes the loop.
type Config struct {
	// Interval between cycles. Ignored when CronSchedule is set.
	Interval time.Duration
	// CronSchedule optionally drives cycles from a standard cron expression.
	CronSchedule string
	// PageSize is the asset page size per store call.
	PageSize int
	// MaxAssets caps how many assets one cycle considers. 0 means paginate
	// until the store is exhausted.
	MaxAssets int
	// MinLabeled is the labeled-example count a cycle must exceed before
	// training triggers.
	MinLabeled int
	// CallTimeout bounds each store call.
	CallTimeout time.Duration
	// TrainBudget and CandidateBudget bound the model search.
	TrainBudget     time.Duration
	CandidateBudget time.Duration
	// Seed fixes the holdout split and candidate training for
	// reproducibility.
	Seed int64
	// MaxFeatures caps the feature space.
	MaxFeatures int
	// ModelPrefix prefixes published model names.
	ModelPrefix string
	// PublishProbabilities publishes calibrated confidences instead of the
	// constant 100.
	PublishProbabilities bool
	// TrainWorkers bounds parallel candidate evaluation.
	TrainWorkers int
}

// Controller runs the loop for one project job. The version counter is owned
// by the instance and increments once per successfully published cycle; it is
// process-lifetime scoped, so published model names also embed a timestamp
// for restart-safe provenance.
type Controller struct {
	store     Store
	publisher Publisher
	project   domain.Project
	job       domain.Job
	config    Config

	version int
	now     func() time.Time
}

// New validates the configuration and resolves the target job against the
// project schema. An unknown job is an unrecoverable configuration error.
func New(store Store, pub Publisher, project domain.Project, jobName string, config Config) (*Controller, error) {
	job, ok := project.Job(jobName)
	if !ok {
		return nil, fmt.Errorf("job %q not found in project %s", jobName, project.ID)
	}
	if len(job.Categories) < 2 {
		return nil, fmt.Errorf("job %q has %d categories, need at least 2", jobName, len(job.Categories))
	}
	if config.CronSchedule != "" {
		if _, err := cron.ParseStandard(config.CronSchedule); err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %w", config.CronSchedule, err)
		}
	} else if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", config.Interval)
	}
	if config.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", config.PageSize)
	}

	return &Controller{
		store:     store,
		publisher: pub,
		project:   project,
		job:       job,
		config:    config,
		now:       time.Now,
	}, nil
}

// Version returns how many cycles have published predictions.
func (c *Controller) Version() int {
	return c.version
}

// Run executes cycles until ctx is cancelled. The first cycle runs
// immediately. Cancellation is only honored between cycles: a cycle in
// flight always runs to its own completion or failure.
func (c *Controller) Run(ctx context.Context) error {
	log.Info().
		Str("project_id", c.project.ID).
		Str("job", c.job.Name).
		Strs("categories", c.job.Categories).
		Msg("Starting labeling loop")

	var schedule cron.Schedule
	if c.config.CronSchedule != "" {
		schedule, _ = cron.ParseStandard(c.config.CronSchedule)
	}

	for {
		c.cycle(ctx)

		var wait time.Duration
		if schedule != nil {
			wait = time.Until(schedule.Next(c.now()))
		} else {
			wait = c.config.Interval
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Labeling loop stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// cycle runs one iteration and fences every failure at this boundary:
// availability over strict correctness of any one cycle.
func (c *Controller) cycle(ctx context.Context) {
	cycleID := xid.New().String()
	logger := log.With().Str("cycle_id", cycleID).Str("job", c.job.Name).Logger()
	started := c.now()

	err := c.runCycle(ctx, cycleID)
	switch {
	case err == nil:
		logger.Info().Dur("took", c.now().Sub(started)).Int("version", c.version).Msg("Cycle complete")
	case errors.Is(err, features.ErrInsufficientData):
		logger.Warn().Err(err).Msg("Cycle skipped: not enough data to build features")
	case errors.Is(err, trainer.ErrTraining):
		logger.Warn().Err(err).Msg("Cycle skipped: training not possible yet")
	default:
		var partial *publisher.PartialError
		if errors.As(err, &partial) {
			logger.Warn().
				Int("failed", len(partial.FailedIDs)).
				Msg("Store rejected part of the batch; next cycle re-fetches")
			return
		}
		logger.Error().Err(err).Msg("Cycle failed")
	}
}

func (c *Controller) runCycle(ctx context.Context, cycleID string) error {
	assets, err := c.fetchAssets(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch assets: %w", err)
	}

	extraction := labeling.Extract(c.job.Name, assets, c.job.Categories)
	log.Debug().
		Str("cycle_id", cycleID).
		Int("assets", len(assets)).
		Int("labeled", len(extraction.Texts)).
		Int("to_predict", len(extraction.ToPredict)).
		Msg("Extracted labels")

	if len(extraction.Texts) <= c.config.MinLabeled {
		log.Info().
			Str("cycle_id", cycleID).
			Int("labeled", len(extraction.Texts)).
			Int("min_labeled", c.config.MinLabeled).
			Msg("Not enough labeled examples yet, skipping training")
		return nil
	}
	if len(extraction.ToPredict) == 0 {
		log.Info().Str("cycle_id", cycleID).Msg("No unlabeled assets, nothing to predict")
		return nil
	}

	vectorizer := features.NewVectorizer(c.config.MaxFeatures)
	trainX, predictX, err := vectorizer.FitTransform(extraction.Texts, extraction.LabelIdx, extraction.ToPredict)
	if err != nil {
		return err
	}

	result, err := trainer.TrainAndPredict(ctx, trainX, extraction.LabelIdx, predictX, trainer.Config{
		Budget:             c.config.TrainBudget,
		PerCandidateBudget: c.config.CandidateBudget,
		Seed:               c.config.Seed,
		Workers:            c.config.TrainWorkers,
	})
	if err != nil {
		return err
	}

	modelName := c.modelName()
	publishCtx, cancel := c.callContext(ctx)
	defer cancel()
	err = c.publisher.Publish(publishCtx, publisher.Params{
		ProjectID:        c.project.ID,
		JobName:          c.job.Name,
		IDs:              extraction.ToPredictIDs,
		Categories:       c.job.Categories,
		Predictions:      result.Predictions,
		Probabilities:    result.Probabilities,
		ModelName:        modelName,
		UseProbabilities: c.config.PublishProbabilities,
	})
	if err != nil {
		var partial *publisher.PartialError
		if errors.As(err, &partial) {
			// The accepted part of the batch stands, so the cycle counts.
			c.version++
		}
		return err
	}

	c.version++
	log.Info().
		Str("cycle_id", cycleID).
		Str("model_name", modelName).
		Int("predictions", len(result.Predictions)).
		Msg("Cycle published predictions")
	return nil
}

// fetchAssets pages through the project until the store is exhausted or the
// configured cap is reached.
func (c *Controller) fetchAssets(ctx context.Context) ([]domain.Asset, error) {
	var assets []domain.Asset
	skip := 0
	for {
		pageSize := c.config.PageSize
		if c.config.MaxAssets > 0 && len(assets)+pageSize > c.config.MaxAssets {
			pageSize = c.config.MaxAssets - len(assets)
		}
		if pageSize <= 0 {
			break
		}

		callCtx, cancel := c.callContext(ctx)
		page, err := c.store.Assets(callCtx, c.project.ID, pageSize, skip)
		cancel()
		if err != nil {
			return nil, err
		}

		assets = append(assets, page...)
		if len(page) < pageSize {
			break
		}
		skip += len(page)
	}
	return assets, nil
}

func (c *Controller) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.CallTimeout)
}

// modelName embeds a UTC timestamp next to the in-process version counter so
// a restart never reuses a published name.
func (c *Controller) modelName() string {
	prefix := c.config.ModelPrefix
	if prefix == "" {
		prefix = "labelforge"
	}
	return fmt.Sprintf("%s-%s-v%d", prefix, c.now().UTC().Format("20060102T150405Z"), c.version+1)
}
