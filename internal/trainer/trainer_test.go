package trainer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// separableSet builds a clearly separable two-class dataset: class 0 lights
// up the first feature block, class 1 the second.
func separableSet(perClass int) (*mat.Dense, []int) {
	rows := perClass * 2
	x := mat.NewDense(rows, 4, nil)
	y := make([]int, rows)
	for i := 0; i < perClass; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, 0.5)
		y[i] = 0
	}
	for i := perClass; i < rows; i++ {
		x.Set(i, 2, 1)
		x.Set(i, 3, 0.5)
		y[i] = 1
	}
	return x, y
}

func TestTrainAndPredict_RequiresTwoClasses(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{1, 0, 1, 0, 1, 0, 1, 0})
	y := []int{0, 0, 0, 0}

	_, err := TrainAndPredict(context.Background(), x, y, nil, Config{Seed: 1})

	assert.ErrorIs(t, err, ErrTraining)
}

func TestTrainAndPredict_SeparableData(t *testing.T) {
	x, y := separableSet(10)
	xPredict := mat.NewDense(2, 4, []float64{
		1, 0.5, 0, 0,
		0, 0, 1, 0.5,
	})

	result, err := TrainAndPredict(context.Background(), x, y, xPredict, Config{
		Seed:    42,
		Workers: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, result.Predictions)
	require.Len(t, result.Probabilities, 2)
	for _, p := range result.Probabilities {
		assert.Greater(t, p, 0.5, "winning class probability")
		assert.LessOrEqual(t, p, 1.0)
	}
	assert.NotEmpty(t, result.Model)
	assert.Greater(t, result.Accuracy, 0.5)
}

func TestTrainAndPredict_DeterministicUnderFixedSeed(t *testing.T) {
	x, y := separableSet(8)
	xPredict := mat.NewDense(3, 4, []float64{
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0.5, 1, 0,
	})
	cfg := Config{Seed: 7, Workers: 4}

	first, err := TrainAndPredict(context.Background(), x, y, xPredict, cfg)
	require.NoError(t, err)
	second, err := TrainAndPredict(context.Background(), x, y, xPredict, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Predictions, second.Predictions)
	assert.Equal(t, first.Model, second.Model)
	assert.Equal(t, first.Accuracy, second.Accuracy)
}

func TestTrainAndPredict_PredictionsMatchInputOrder(t *testing.T) {
	x, y := separableSet(6)
	xPredict := mat.NewDense(4, 4, []float64{
		0, 0, 1, 1,
		1, 1, 0, 0,
		0, 0, 1, 1,
		1, 1, 0, 0,
	})

	result, err := TrainAndPredict(context.Background(), x, y, xPredict, Config{Seed: 3})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 0, 1, 0}, result.Predictions)
}

func TestTrainAndPredict_NoPredictRows(t *testing.T) {
	x, y := separableSet(5)

	result, err := TrainAndPredict(context.Background(), x, y, nil, Config{Seed: 1})
	require.NoError(t, err)

	assert.Empty(t, result.Predictions)
}

func TestTrainAndPredict_ExhaustedBudget(t *testing.T) {
	x, y := separableSet(5)

	// An already-expired budget admits no candidate.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TrainAndPredict(ctx, x, y, nil, Config{
		Seed:   1,
		Budget: time.Minute,
	})

	assert.ErrorIs(t, err, ErrTraining)
}

func TestSplit_Deterministic(t *testing.T) {
	x, y := separableSet(10)

	_, trainY1, _, holdY1 := split(x, y, 0.3, 42)
	_, trainY2, _, holdY2 := split(x, y, 0.3, 42)

	assert.Equal(t, trainY1, trainY2)
	assert.Equal(t, holdY1, holdY2)
	assert.Len(t, holdY1, 6)
	assert.Len(t, trainY1, 14)
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 1.0, accuracy([]int{0, 1}, []int{0, 1}))
	assert.Equal(t, 0.5, accuracy([]int{0, 0}, []int{0, 1}))
	assert.Equal(t, 0.0, accuracy(nil, nil))
}
