package trainer

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// model is one candidate estimator. fit may return early when the context
// expires; predict returns the winning class index and its probability for
// every row.
type model interface {
	fit(ctx context.Context, x *mat.Dense, y []int, classes int) error
	predict(x *mat.Dense) (predictions []int, probabilities []float64)
}

// naiveBayes is a multinomial naive Bayes classifier with additive
// smoothing, suitable for non-negative TF-IDF features.
type naiveBayes struct {
	alpha float64

	logPrior []float64
	logProb  *mat.Dense // classes x features
}

func (m *naiveBayes) fit(ctx context.Context, x *mat.Dense, y []int, classes int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rows, cols := x.Dims()
	classCount := make([]float64, classes)
	featureMass := mat.NewDense(classes, cols, nil)
	for i := 0; i < rows; i++ {
		classCount[y[i]]++
		for j := 0; j < cols; j++ {
			featureMass.Set(y[i], j, featureMass.At(y[i], j)+x.At(i, j))
		}
	}

	m.logPrior = make([]float64, classes)
	m.logProb = mat.NewDense(classes, cols, nil)
	for c := 0; c < classes; c++ {
		m.logPrior[c] = math.Log((classCount[c] + 1) / (float64(rows) + float64(classes)))
		total := 0.0
		for j := 0; j < cols; j++ {
			total += featureMass.At(c, j) + m.alpha
		}
		for j := 0; j < cols; j++ {
			m.logProb.Set(c, j, math.Log((featureMass.At(c, j)+m.alpha)/total))
		}
	}
	return nil
}

func (m *naiveBayes) predict(x *mat.Dense) ([]int, []float64) {
	rows, cols := x.Dims()
	classes := len(m.logPrior)
	predictions := make([]int, rows)
	probabilities := make([]float64, rows)
	scores := make([]float64, classes)
	for i := 0; i < rows; i++ {
		for c := 0; c < classes; c++ {
			s := m.logPrior[c]
			for j := 0; j < cols; j++ {
				if w := x.At(i, j); w != 0 {
					s += w * m.logProb.At(c, j)
				}
			}
			scores[c] = s
		}
		best := floats.MaxIdx(scores)
		predictions[i] = best
		probabilities[i] = softmaxAt(scores, best)
	}
	return predictions, probabilities
}

// logistic is a softmax regression classifier trained with plain SGD over a
// fixed number of epochs. Row order is shuffled with a per-candidate seed so
// training is reproducible.
type logistic struct {
	learningRate float64
	l2           float64
	epochs       int
	seed         int64

	weights *mat.Dense // classes x (features + bias)
}

func (m *logistic) fit(ctx context.Context, x *mat.Dense, y []int, classes int) error {
	rows, cols := x.Dims()
	m.weights = mat.NewDense(classes, cols+1, nil)

	rng := rand.New(rand.NewSource(m.seed))
	order := rng.Perm(rows)
	scores := make([]float64, classes)

	for epoch := 0; epoch < m.epochs; epoch++ {
		// The budget check sits at epoch granularity; one epoch over a
		// labeling-sized dataset is cheap.
		if err := ctx.Err(); err != nil {
			return err
		}
		rng.Shuffle(rows, func(a, b int) { order[a], order[b] = order[b], order[a] })
		for _, i := range order {
			m.scoreRow(x, i, scores)
			softmaxInPlace(scores)
			for c := 0; c < classes; c++ {
				target := 0.0
				if c == y[i] {
					target = 1.0
				}
				grad := scores[c] - target
				for j := 0; j < cols; j++ {
					w := m.weights.At(c, j)
					m.weights.Set(c, j, w-m.learningRate*(grad*x.At(i, j)+m.l2*w))
				}
				bias := m.weights.At(c, cols)
				m.weights.Set(c, cols, bias-m.learningRate*grad)
			}
		}
	}
	return nil
}

func (m *logistic) scoreRow(x *mat.Dense, i int, scores []float64) {
	classes, colsPlus := m.weights.Dims()
	cols := colsPlus - 1
	for c := 0; c < classes; c++ {
		s := m.weights.At(c, cols)
		for j := 0; j < cols; j++ {
			if w := x.At(i, j); w != 0 {
				s += w * m.weights.At(c, j)
			}
		}
		scores[c] = s
	}
}

func (m *logistic) predict(x *mat.Dense) ([]int, []float64) {
	rows, _ := x.Dims()
	classes, _ := m.weights.Dims()
	predictions := make([]int, rows)
	probabilities := make([]float64, rows)
	scores := make([]float64, classes)
	for i := 0; i < rows; i++ {
		m.scoreRow(x, i, scores)
		best := floats.MaxIdx(scores)
		predictions[i] = best
		probabilities[i] = softmaxAt(scores, best)
	}
	return predictions, probabilities
}

// softmaxAt returns the softmax probability of index i, computed stably.
func softmaxAt(scores []float64, i int) float64 {
	max := floats.Max(scores)
	sum := 0.0
	for _, s := range scores {
		sum += math.Exp(s - max)
	}
	return math.Exp(scores[i]-max) / sum
}

func softmaxInPlace(scores []float64) {
	max := floats.Max(scores)
	sum := 0.0
	for i, s := range scores {
		scores[i] = math.Exp(s - max)
		sum += scores[i]
	}
	for i := range scores {
		scores[i] /= sum
	}
}
