package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/labelforge/labelforge/internal/config"
	"github.com/labelforge/labelforge/internal/domain"
)

// detectionResults is the YAML file an inference job leaves behind: one
// category decision per asset, with the detector's own confidence.
type detectionResults struct {
	Results []detectionResult `yaml:"results"`
}

type detectionResult struct {
	ExternalID string  `yaml:"external_id"`
	Category   string  `yaml:"category"`
	Confidence float64 `yaml:"confidence"`
}

func NewDetectCommand() *cobra.Command {
	var file string
	var modelName string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Publish detection results produced by an inference job",
		Long: `Read an inference job's results file and publish its detections as prediction
labels through the same store contract the loop uses. The detector itself runs
elsewhere; this command only ships its outputs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd.Context(), file, modelName)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the detection results file (required)")
	cmd.Flags().StringVar(&modelName, "model-name", "", "Model name to attribute the batch to (default: derived from the model prefix)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runDetect(ctx context.Context, file, modelName string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read results %s: %w", file, err)
	}

	var results detectionResults
	if err := yaml.Unmarshal(raw, &results); err != nil {
		return fmt.Errorf("failed to parse results %s: %w", file, err)
	}
	if len(results.Results) == 0 {
		return fmt.Errorf("results file %s contains no detections", file)
	}

	store := newStoreClient(cfg)

	project, err := store.Project(ctx, cfg.ProjectID)
	if err != nil {
		return err
	}
	job, ok := project.Job(cfg.JobName)
	if !ok {
		return fmt.Errorf("job %q not found in project %s", cfg.JobName, project.ID)
	}

	if modelName == "" {
		modelName = fmt.Sprintf("%s-detect-%s", cfg.ModelPrefix, time.Now().UTC().Format("20060102T150405Z"))
	}

	batch := domain.PredictionBatch{
		ProjectID:   project.ID,
		ExternalIDs: make([]string, 0, len(results.Results)),
		ModelNames:  make([]string, 0, len(results.Results)),
		Responses:   make([]domain.Response, 0, len(results.Results)),
	}
	for i, result := range results.Results {
		if _, known := job.CategoryIndex(result.Category); !known {
			return fmt.Errorf("detection %d names category %q missing from job %s", i, result.Category, job.Name)
		}
		confidence := int(result.Confidence * 100)
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 100 {
			confidence = 100
		}
		batch.ExternalIDs = append(batch.ExternalIDs, result.ExternalID)
		batch.ModelNames = append(batch.ModelNames, modelName)
		batch.Responses = append(batch.Responses, domain.NewClassificationResponse(job.Name, result.Category, confidence))
	}

	accepted, err := store.CreatePredictions(ctx, batch)
	if err != nil {
		return err
	}
	if len(accepted) < len(batch.ExternalIDs) {
		log.Warn().
			Int("submitted", len(batch.ExternalIDs)).
			Int("accepted", len(accepted)).
			Msg("Store rejected part of the detection batch")
	}

	log.Info().
		Int("count", len(accepted)).
		Str("model_name", modelName).
		Msg("Published detection results")

	return nil
}
