// Package trainer selects and fits a classifier under a wall-clock budget:
// a fixed-seed holdout split, a small grid of candidate configurations
// evaluated in parallel, best-by-holdout-accuracy wins.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ErrTraining is returned when no classifier can be fitted: fewer than two
// distinct classes, or no candidate finished inside the budget.
var ErrTraining = errors.New("trainer: cannot fit a classifier")

// Config bounds one training run.
type Config struct {
	Budget             time.Duration
	PerCandidateBudget time.Duration
	Seed               int64
	HoldoutRatio       float64
	Workers            int
}

// Result is the outcome of one training run. Probabilities carries the
// winning-class probability per prediction, for calibrated-confidence
// publishing.
type Result struct {
	Predictions   []int
	Probabilities []float64
	Accuracy      float64
	Model         string
}

type candidate struct {
	name  string
	build func(seed int64) model
}

// grid is the candidate search space, in a fixed order so that ties resolve
// deterministically.
func grid() []candidate {
	var candidates []candidate
	for _, alpha := range []float64{0.01, 0.1, 0.5, 1.0} {
		alpha := alpha
		candidates = append(candidates, candidate{
			name:  fmt.Sprintf("multinomial-nb(alpha=%g)", alpha),
			build: func(int64) model { return &naiveBayes{alpha: alpha} },
		})
	}
	for _, lr := range []float64{0.01, 0.1} {
		for _, l2 := range []float64{1e-4, 1e-3} {
			for _, epochs := range []int{20, 50} {
				lr, l2, epochs := lr, l2, epochs
				candidates = append(candidates, candidate{
					name: fmt.Sprintf("logistic(lr=%g,l2=%g,epochs=%d)", lr, l2, epochs),
					build: func(seed int64) model {
						return &logistic{learningRate: lr, l2: l2, epochs: epochs, seed: seed}
					},
				})
			}
		}
	}
	return candidates
}

// TrainAndPredict fits the best candidate on (x, y) and predicts a category
// index for every row of xPredict, in input order. The holdout accuracy of
// the winning candidate is logged as an observability signal.
func TrainAndPredict(ctx context.Context, x *mat.Dense, y []int, xPredict *mat.Dense, cfg Config) (Result, error) {
	classes := distinctClasses(y)
	if classes < 2 {
		return Result{}, fmt.Errorf("%w: need at least 2 distinct classes, got %d", ErrTraining, classes)
	}
	if cfg.HoldoutRatio <= 0 || cfg.HoldoutRatio >= 1 {
		cfg.HoldoutRatio = 0.3
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	trainX, trainY, holdX, holdY := split(x, y, cfg.HoldoutRatio, cfg.Seed)
	numClasses := maxClass(y) + 1

	searchCtx := ctx
	if cfg.Budget > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, cfg.Budget)
		defer cancel()
	}

	candidates := grid()
	accuracies := make([]float64, len(candidates))
	finished := make([]bool, len(candidates))

	group, groupCtx := errgroup.WithContext(searchCtx)
	group.SetLimit(cfg.Workers)
	for i, cand := range candidates {
		i, cand := i, cand
		// Candidates not yet started when the budget expires are skipped.
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			candCtx := groupCtx
			if cfg.PerCandidateBudget > 0 {
				var cancel context.CancelFunc
				candCtx, cancel = context.WithTimeout(groupCtx, cfg.PerCandidateBudget)
				defer cancel()
			}
			m := cand.build(cfg.Seed)
			if err := m.fit(candCtx, trainX, trainY, numClasses); err != nil {
				log.Debug().Str("candidate", cand.name).Err(err).Msg("Candidate abandoned")
				return nil
			}
			predictions, _ := m.predict(holdX)
			accuracies[i] = accuracy(predictions, holdY)
			finished[i] = true
			return nil
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return Result{}, fmt.Errorf("candidate search failed: %w", err)
	}

	best := -1
	for i := range candidates {
		if finished[i] && (best == -1 || accuracies[i] > accuracies[best]) {
			best = i
		}
	}
	if best == -1 {
		return Result{}, fmt.Errorf("%w: no candidate finished within the budget", ErrTraining)
	}

	log.Info().
		Str("model", candidates[best].name).
		Float64("holdout_accuracy", accuracies[best]).
		Int("train_examples", len(trainY)).
		Int("holdout_examples", len(holdY)).
		Msg("Selected classifier")

	// Refit the winner on everything before scoring, outside the search
	// budget: the search has already paid for model selection.
	winner := candidates[best].build(cfg.Seed)
	if err := winner.fit(ctx, x, y, numClasses); err != nil {
		return Result{}, fmt.Errorf("failed to refit selected model: %w", err)
	}

	result := Result{
		Accuracy: accuracies[best],
		Model:    candidates[best].name,
	}
	if xPredict != nil {
		rows, _ := xPredict.Dims()
		if rows > 0 {
			result.Predictions, result.Probabilities = winner.predict(xPredict)
		}
	}
	return result, nil
}

// split partitions (x, y) into train and holdout with a deterministic
// shuffle.
func split(x *mat.Dense, y []int, holdoutRatio float64, seed int64) (trainX *mat.Dense, trainY []int, holdX *mat.Dense, holdY []int) {
	rows, cols := x.Dims()
	order := rand.New(rand.NewSource(seed)).Perm(rows)

	holdCount := int(float64(rows) * holdoutRatio)
	if holdCount < 1 {
		holdCount = 1
	}
	if holdCount >= rows {
		holdCount = rows - 1
	}
	trainCount := rows - holdCount

	trainX = mat.NewDense(trainCount, cols, nil)
	holdX = mat.NewDense(holdCount, cols, nil)
	trainY = make([]int, trainCount)
	holdY = make([]int, holdCount)
	for i, src := range order {
		if i < trainCount {
			trainX.SetRow(i, x.RawRowView(src))
			trainY[i] = y[src]
		} else {
			holdX.SetRow(i-trainCount, x.RawRowView(src))
			holdY[i-trainCount] = y[src]
		}
	}
	return trainX, trainY, holdX, holdY
}

func accuracy(predictions, truth []int) float64 {
	if len(truth) == 0 {
		return 0
	}
	correct := 0
	for i, p := range predictions {
		if p == truth[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth))
}

func distinctClasses(y []int) int {
	seen := make(map[int]bool)
	for _, v := range y {
		seen[v] = true
	}
	return len(seen)
}

func maxClass(y []int) int {
	max := 0
	for _, v := range y {
		if v > max {
			max = v
		}
	}
	return max
}
