package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelType_HumanAuthored(t *testing.T) {
	tests := []struct {
		labelType LabelType
		expected  bool
	}{
		{LabelTypeDefault, true},
		{LabelTypeReview, true},
		{LabelTypeReviewed, true},
		{LabelTypePrediction, false},
		{LabelType("UNKNOWN"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.labelType), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.labelType.HumanAuthored())
		})
	}
}

func TestResponse_SingleCategory(t *testing.T) {
	tests := []struct {
		name     string
		response Response
		job      string
		expected string
		ok       bool
	}{
		{
			name:     "single category",
			response: NewClassificationResponse("sentiment", "positive", 100),
			job:      "sentiment",
			expected: "positive",
			ok:       true,
		},
		{
			name: "two categories is ambiguous",
			response: Response{"sentiment": JobResponse{Categories: []Category{
				{Name: "positive", Confidence: 100},
				{Name: "negative", Confidence: 100},
			}}},
			job: "sentiment",
			ok:  false,
		},
		{
			name:     "empty categories",
			response: Response{"sentiment": JobResponse{}},
			job:      "sentiment",
			ok:       false,
		},
		{
			name:     "missing job",
			response: NewClassificationResponse("sentiment", "positive", 100),
			job:      "topic",
			ok:       false,
		},
		{
			name:     "empty category name",
			response: NewClassificationResponse("sentiment", "", 100),
			job:      "sentiment",
			ok:       false,
		},
		{
			name: "nil response",
			job:  "sentiment",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ok := tt.response.SingleCategory(tt.job)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestResponse_WireShape(t *testing.T) {
	// The store dictates this JSON byte-for-byte.
	response := NewClassificationResponse("JOB_0", "disaster", 100)

	encoded, err := json.Marshal(response)
	require.NoError(t, err)
	assert.JSONEq(t, `{"JOB_0":{"categories":[{"name":"disaster","confidence":100}]}}`, string(encoded))

	var decoded Response
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	name, ok := decoded.SingleCategory("JOB_0")
	require.True(t, ok)
	assert.Equal(t, "disaster", name)
}

func TestJob_CategoryLookups(t *testing.T) {
	job := Job{Name: "JOB_0", Categories: []string{"disaster", "not_disaster"}}

	idx, ok := job.CategoryIndex("not_disaster")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = job.CategoryIndex("unknown")
	assert.False(t, ok)

	name, ok := job.CategoryName(0)
	require.True(t, ok)
	assert.Equal(t, "disaster", name)

	_, ok = job.CategoryName(2)
	assert.False(t, ok)
	_, ok = job.CategoryName(-1)
	assert.False(t, ok)
}

func TestProject_Job(t *testing.T) {
	project := Project{
		ID:   "p1",
		Jobs: []Job{{Name: "JOB_0"}, {Name: "JOB_1"}},
	}

	job, ok := project.Job("JOB_1")
	require.True(t, ok)
	assert.Equal(t, "JOB_1", job.Name)

	_, ok = project.Job("JOB_2")
	assert.False(t, ok)
}
