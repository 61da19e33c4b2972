// Package publisher packages model outputs into the annotation store's
// response schema and writes them back as one attributable batch.
package publisher

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/labelforge/labelforge/internal/domain"
)

// Store is the single write primitive the publisher needs. It returns the
// external ids the store accepted, which may be a subset of those submitted.
type Store interface {
	CreatePredictions(ctx context.Context, batch domain.PredictionBatch) ([]string, error)
}

// PartialError reports a batch the store only partially accepted. The
// successes stand; the failed ids are surfaced for the next cycle to retry
// via its normal re-fetch.
type PartialError struct {
	FailedIDs []string
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("publisher: store rejected %d prediction(s): %s", len(e.FailedIDs), strings.Join(e.FailedIDs, ", "))
}

// Publisher writes prediction batches through a Store.
type Publisher struct {
	store Store
}

// New creates a Publisher.
func New(store Store) *Publisher {
	return &Publisher{store: store}
}

// Params describes one batch to publish. Predictions index into Categories.
// When UseProbabilities is set, each response carries the classifier's
// winning-class probability scaled to [0,100] instead of the constant 100.
type Params struct {
	ProjectID        string
	JobName          string
	IDs              []string
	Categories       []string
	Predictions      []int
	Probabilities    []float64
	ModelName        string
	UseProbabilities bool
}

// Publish builds one single-category response per (id, prediction) pair and
// submits them as one batch under one model name.
func (p *Publisher) Publish(ctx context.Context, params Params) error {
	if len(params.IDs) != len(params.Predictions) {
		return fmt.Errorf("ids and predictions must be the same length: %d != %d", len(params.IDs), len(params.Predictions))
	}
	if params.UseProbabilities && len(params.Probabilities) != len(params.Predictions) {
		return fmt.Errorf("probabilities and predictions must be the same length: %d != %d", len(params.Probabilities), len(params.Predictions))
	}
	if len(params.IDs) == 0 {
		return nil
	}

	batch := domain.PredictionBatch{
		ProjectID:   params.ProjectID,
		ExternalIDs: params.IDs,
		ModelNames:  make([]string, len(params.IDs)),
		Responses:   make([]domain.Response, len(params.IDs)),
	}
	for i, prediction := range params.Predictions {
		if prediction < 0 || prediction >= len(params.Categories) {
			return fmt.Errorf("prediction index %d out of range for %d categories", prediction, len(params.Categories))
		}
		confidence := 100
		if params.UseProbabilities {
			confidence = clampConfidence(params.Probabilities[i])
		}
		batch.ModelNames[i] = params.ModelName
		batch.Responses[i] = domain.NewClassificationResponse(params.JobName, params.Categories[prediction], confidence)
	}

	accepted, err := p.store.CreatePredictions(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to publish predictions: %w", err)
	}

	acceptedSet := make(map[string]bool, len(accepted))
	for _, id := range accepted {
		acceptedSet[id] = true
	}
	var failed []string
	for _, id := range params.IDs {
		if !acceptedSet[id] {
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return &PartialError{FailedIDs: failed}
	}

	log.Info().
		Int("count", len(params.IDs)).
		Str("model_name", params.ModelName).
		Str("job", params.JobName).
		Msg("Published predictions")

	return nil
}

func clampConfidence(probability float64) int {
	confidence := int(math.Round(probability * 100))
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
