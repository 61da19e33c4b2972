package loop

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelforge/internal/domain"
	"github.com/labelforge/labelforge/internal/publisher"
)

type pageCall struct {
	first int
	skip  int
}

type fakeStore struct {
	assets []domain.Asset
	calls  []pageCall
	err    error
}

func (f *fakeStore) Assets(ctx context.Context, projectID string, first, skip int) ([]domain.Asset, error) {
	f.calls = append(f.calls, pageCall{first: first, skip: skip})
	if f.err != nil {
		return nil, f.err
	}
	if skip >= len(f.assets) {
		return nil, nil
	}
	end := skip + first
	if end > len(f.assets) {
		end = len(f.assets)
	}
	return f.assets[skip:end], nil
}

type fakePublisher struct {
	published []publisher.Params
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, params publisher.Params) error {
	f.published = append(f.published, params)
	return f.err
}

var testProject = domain.Project{
	ID:   "p1",
	Jobs: []domain.Job{{Name: "JOB_0", Categories: []string{"disaster", "not_disaster"}}},
}

func testConfig() Config {
	return Config{
		Interval:    time.Minute,
		PageSize:    100,
		MinLabeled:  3,
		CallTimeout: time.Second,
		Seed:        42,
		MaxFeatures: 100,
		ModelPrefix: "test",
	}
}

func labeledAsset(id, content, category string) domain.Asset {
	return domain.Asset{
		ID: id, ExternalID: id, Content: content,
		Labels: []domain.Label{{
			Type:     domain.LabelTypeDefault,
			Response: domain.NewClassificationResponse("JOB_0", category, 100),
		}},
	}
}

// labeledPool builds count labeled assets alternating between two clearly
// separable vocabularies, plus unlabeled assets to score.
func labeledPool(count int) []domain.Asset {
	assets := make([]domain.Asset, 0, count+2)
	for i := 0; i < count; i++ {
		if i%2 == 0 {
			assets = append(assets, labeledAsset(fmt.Sprintf("l%d", i), "fire flood storm damage wreckage", "disaster"))
		} else {
			assets = append(assets, labeledAsset(fmt.Sprintf("l%d", i), "sunny calm beach holiday relaxing", "not_disaster"))
		}
	}
	assets = append(assets,
		domain.Asset{ID: "u1", ExternalID: "u1", Content: "storm flood damage"},
		domain.Asset{ID: "u2", ExternalID: "u2", Content: "relaxing beach holiday"},
	)
	return assets
}

func TestNew_UnknownJob(t *testing.T) {
	_, err := New(&fakeStore{}, &fakePublisher{}, testProject, "JOB_9", testConfig())
	assert.Error(t, err)
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.CronSchedule = "not a cron line"

	_, err := New(&fakeStore{}, &fakePublisher{}, testProject, "JOB_0", cfg)
	assert.Error(t, err)
}

func TestCycle_ThresholdGate(t *testing.T) {
	tests := []struct {
		name          string
		labeled       int
		expectPublish bool
	}{
		{"below threshold", 2, false},
		{"exactly threshold", 3, false},
		{"threshold plus one", 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{assets: labeledPool(tt.labeled)}
			pub := &fakePublisher{}
			c, err := New(store, pub, testProject, "JOB_0", testConfig())
			require.NoError(t, err)

			c.cycle(context.Background())

			if tt.expectPublish {
				require.Len(t, pub.published, 1)
				assert.Equal(t, 1, c.Version())
			} else {
				assert.Empty(t, pub.published)
				assert.Equal(t, 0, c.Version())
			}
		})
	}
}

func TestCycle_PublishesForUnlabeledOnly(t *testing.T) {
	store := &fakeStore{assets: labeledPool(6)}
	pub := &fakePublisher{}
	c, err := New(store, pub, testProject, "JOB_0", testConfig())
	require.NoError(t, err)

	c.cycle(context.Background())

	require.Len(t, pub.published, 1)
	params := pub.published[0]
	assert.Equal(t, []string{"u1", "u2"}, params.IDs)
	assert.Equal(t, "p1", params.ProjectID)
	assert.Equal(t, "JOB_0", params.JobName)
	assert.Equal(t, []string{"disaster", "not_disaster"}, params.Categories)
	assert.Len(t, params.Predictions, 2)
	assert.Contains(t, params.ModelName, "test-")
	assert.Contains(t, params.ModelName, "-v1")
}

func TestCycle_NoUnlabeledAssetsSkipsPublish(t *testing.T) {
	assets := labeledPool(6)
	assets = assets[:6] // drop the unlabeled tail
	store := &fakeStore{assets: assets}
	pub := &fakePublisher{}
	c, err := New(store, pub, testProject, "JOB_0", testConfig())
	require.NoError(t, err)

	c.cycle(context.Background())

	assert.Empty(t, pub.published)
	assert.Equal(t, 0, c.Version())
}

func TestCycle_VersionIncrementsPerPublishedCycle(t *testing.T) {
	store := &fakeStore{assets: labeledPool(6)}
	pub := &fakePublisher{}
	c, err := New(store, pub, testProject, "JOB_0", testConfig())
	require.NoError(t, err)

	c.cycle(context.Background())
	c.cycle(context.Background())

	assert.Equal(t, 2, c.Version())
	require.Len(t, pub.published, 2)
	assert.Contains(t, pub.published[0].ModelName, "-v1")
	assert.Contains(t, pub.published[1].ModelName, "-v2")
}

func TestCycle_StoreFailureIsFenced(t *testing.T) {
	store := &fakeStore{err: errors.New("store unreachable")}
	pub := &fakePublisher{}
	c, err := New(store, pub, testProject, "JOB_0", testConfig())
	require.NoError(t, err)

	// Must not panic and must not publish; the loop would continue.
	c.cycle(context.Background())

	assert.Empty(t, pub.published)
	assert.Equal(t, 0, c.Version())
}

func TestCycle_PartialPublishStillCounts(t *testing.T) {
	store := &fakeStore{assets: labeledPool(6)}
	pub := &fakePublisher{err: &publisher.PartialError{FailedIDs: []string{"u2"}}}
	c, err := New(store, pub, testProject, "JOB_0", testConfig())
	require.NoError(t, err)

	c.cycle(context.Background())

	// The accepted part of the batch stands; next cycle re-fetches the rest.
	assert.Equal(t, 1, c.Version())
}

func TestFetchAssets_PaginatesUntilExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.PageSize = 4
	store := &fakeStore{assets: labeledPool(8)} // 10 assets total
	c, err := New(store, &fakePublisher{}, testProject, "JOB_0", cfg)
	require.NoError(t, err)

	assets, err := c.fetchAssets(context.Background())
	require.NoError(t, err)

	assert.Len(t, assets, 10)
	assert.Equal(t, []pageCall{{4, 0}, {4, 4}, {4, 8}}, store.calls)
}

func TestFetchAssets_MaxAssetsCapsTheSample(t *testing.T) {
	cfg := testConfig()
	cfg.PageSize = 4
	cfg.MaxAssets = 6
	store := &fakeStore{assets: labeledPool(8)}
	c, err := New(store, &fakePublisher{}, testProject, "JOB_0", cfg)
	require.NoError(t, err)

	assets, err := c.fetchAssets(context.Background())
	require.NoError(t, err)

	assert.Len(t, assets, 6)
	assert.Equal(t, []pageCall{{4, 0}, {2, 4}}, store.calls)
}

func TestModelName_EmbedsTimestampAndVersion(t *testing.T) {
	c, err := New(&fakeStore{}, &fakePublisher{}, testProject, "JOB_0", testConfig())
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	assert.Equal(t, "test-20240501T120000Z-v1", c.modelName())

	c.version = 4
	assert.Equal(t, "test-20240501T120000Z-v5", c.modelName())
}

func TestRun_StopsOnCancelBetweenCycles(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 10 * time.Millisecond
	store := &fakeStore{}
	c, err := New(store, &fakePublisher{}, testProject, "JOB_0", cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}

	assert.GreaterOrEqual(t, len(store.calls), 1, "first cycle runs immediately")
}
