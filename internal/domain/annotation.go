package domain

import (
	"time"
)

// LabelType tags who authored a label.
type LabelType string

const (
	LabelTypeDefault    LabelType = "DEFAULT"
	LabelTypePrediction LabelType = "PREDICTION"
	LabelTypeReview     LabelType = "REVIEW"
	LabelTypeReviewed   LabelType = "REVIEWED"
)

// HumanAuthored reports whether the label came from an annotator or a
// reviewer. Prediction labels never count as training signal.
func (t LabelType) HumanAuthored() bool {
	switch t {
	case LabelTypeDefault, LabelTypeReview, LabelTypeReviewed:
		return true
	}
	return false
}

// Category is one selected class within a classification response.
// Confidence is in [0,100]; human annotators always report 100.
type Category struct {
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
}

// JobResponse holds the classification content for one job.
type JobResponse struct {
	Categories []Category `json:"categories"`
}

// Response is the per-job annotation payload, keyed by job name. Its JSON
// form is dictated by the annotation store and must not change:
// {"<job>":{"categories":[{"name":...,"confidence":...}]}}.
type Response map[string]JobResponse

// SingleCategory returns the category name for jobName when the response
// encodes exactly one non-empty category, and false otherwise. Multi-category
// and empty responses are ambiguous in-progress states, not errors.
func (r Response) SingleCategory(jobName string) (string, bool) {
	jr, ok := r[jobName]
	if !ok {
		return "", false
	}
	if len(jr.Categories) != 1 {
		return "", false
	}
	name := jr.Categories[0].Name
	if name == "" {
		return "", false
	}
	return name, true
}

// Label is one annotation event on an asset.
type Label struct {
	ID        string
	Type      LabelType
	CreatedAt time.Time
	Response  Response
}

// Asset is one unit of content under annotation.
type Asset struct {
	ID         string
	ExternalID string
	Content    string
	Labels     []Label
}

// Job is a named classification task within a project's interface schema.
// Category order is significant: it defines the integer encoding used when
// training and when decoding prediction indices back into names.
type Job struct {
	Name       string
	Categories []string
}

// CategoryIndex returns the position of name in the job's ordered category
// list.
func (j Job) CategoryIndex(name string) (int, bool) {
	for i, c := range j.Categories {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// CategoryName returns the category at index i, bounds-checked.
func (j Job) CategoryName(i int) (string, bool) {
	if i < 0 || i >= len(j.Categories) {
		return "", false
	}
	return j.Categories[i], true
}

// Project identifies an annotation workspace and its interface schema.
type Project struct {
	ID    string
	Title string
	Jobs  []Job
}

// Job looks up a job by name.
func (p Project) Job(name string) (Job, bool) {
	for _, j := range p.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// PredictionBatch is the write-only structure submitted to the store:
// parallel slices of (external asset id, model name, response).
type PredictionBatch struct {
	ProjectID   string
	ExternalIDs []string
	ModelNames  []string
	Responses   []Response
}

// NewClassificationResponse builds a single-category response for one job.
func NewClassificationResponse(jobName, category string, confidence int) Response {
	return Response{
		jobName: JobResponse{
			Categories: []Category{{Name: category, Confidence: confidence}},
		},
	}
}
