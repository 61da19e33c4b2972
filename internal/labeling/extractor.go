// Package labeling partitions an asset snapshot into training examples and
// items that still need a prediction.
package labeling

import (
	"github.com/rs/zerolog/log"

	"github.com/labelforge/labelforge/internal/domain"
)

// Extraction is the result of splitting one asset snapshot for a single job.
// Texts and LabelIdx are parallel; ToPredict and ToPredictIDs are parallel.
type Extraction struct {
	Texts        []string
	LabelIdx     []int
	ToPredict    []string
	ToPredictIDs []string
}

// Extract splits assets into (content, category index) training pairs and
// unlabeled items for the given job. Only human-authored labels count as
// signal; an asset with no usable label goes to the to-predict split. An
// asset with several usable labels contributes one pair per qualifying
// label, which intentionally upweights assets with denser annotation
// agreement. Labels whose response is ambiguous for the job (zero or
// multiple categories) are skipped silently.
func Extract(jobName string, assets []domain.Asset, categories []string) Extraction {
	index := make(map[string]int, len(categories))
	for i, name := range categories {
		index[name] = i
	}

	var out Extraction
	for _, asset := range assets {
		usable := 0
		for _, label := range asset.Labels {
			if !label.Type.HumanAuthored() {
				continue
			}
			usable++

			name, ok := label.Response.SingleCategory(jobName)
			if !ok {
				continue
			}
			idx, known := index[name]
			if !known {
				log.Warn().
					Str("job", jobName).
					Str("asset_id", asset.ID).
					Str("category", name).
					Msg("Label names a category missing from the job schema, skipping")
				continue
			}
			out.Texts = append(out.Texts, asset.Content)
			out.LabelIdx = append(out.LabelIdx, idx)
		}

		if usable == 0 {
			out.ToPredict = append(out.ToPredict, asset.Content)
			out.ToPredictIDs = append(out.ToPredictIDs, asset.ExternalID)
		}
	}

	return out
}
