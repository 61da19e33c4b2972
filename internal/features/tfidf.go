// Package features turns raw text into fixed-width numeric matrices for
// classifier training: a TF-IDF vectorizer fitted on the training split only,
// followed by chi-squared feature selection bounded to a maximum column
// count.
package features

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientData is returned when there is nothing to fit a vocabulary
// on.
var ErrInsufficientData = errors.New("features: no training documents to fit vocabulary")

// Vectorizer converts documents into l2-normalized TF-IDF rows and keeps at
// most MaxFeatures columns, scored by chi-squared significance against the
// training labels.
type Vectorizer struct {
	MaxFeatures int
}

// NewVectorizer returns a vectorizer capped at maxFeatures columns.
func NewVectorizer(maxFeatures int) *Vectorizer {
	return &Vectorizer{MaxFeatures: maxFeatures}
}

// FitTransform fits the vocabulary and idf weights on trainTexts only, then
// transforms both splits into the shared feature space. The score split never
// influences vocabulary or feature selection. When scoreTexts is empty the
// returned score matrix is nil.
func (v *Vectorizer) FitTransform(trainTexts []string, labels []int, scoreTexts []string) (train, score *mat.Dense, err error) {
	if len(trainTexts) == 0 {
		return nil, nil, ErrInsufficientData
	}

	trainTokens := make([][]string, len(trainTexts))
	for i, text := range trainTexts {
		trainTokens[i] = tokenize(text)
	}

	vocab, docFreq := buildVocabulary(trainTokens, v.MaxFeatures)
	if len(vocab) == 0 {
		return nil, nil, ErrInsufficientData
	}

	idf := make([]float64, len(docFreq))
	n := float64(len(trainTexts))
	for i, df := range docFreq {
		idf[i] = math.Log((1+n)/(1+float64(df))) + 1
	}

	trainMatrix := transform(trainTokens, vocab, idf)

	var scoreMatrix *mat.Dense
	if len(scoreTexts) > 0 {
		scoreTokens := make([][]string, len(scoreTexts))
		for i, text := range scoreTexts {
			scoreTokens[i] = tokenize(text)
		}
		scoreMatrix = transform(scoreTokens, vocab, idf)
	}

	if v.MaxFeatures > 0 && len(vocab) > v.MaxFeatures {
		selected := selectTopK(trainMatrix, labels, v.MaxFeatures)
		trainMatrix = keepColumns(trainMatrix, selected)
		if scoreMatrix != nil {
			scoreMatrix = keepColumns(scoreMatrix, selected)
		}
	}

	return trainMatrix, scoreMatrix, nil
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// buildVocabulary assigns column indices in first-seen order and returns the
// per-term document frequency. When the raw vocabulary overflows the cap,
// terms seen in a single document are pruned first.
func buildVocabulary(docs [][]string, maxFeatures int) (map[string]int, []int) {
	type termStat struct {
		order int
		df    int
	}
	stats := make(map[string]*termStat)
	order := 0
	for _, tokens := range docs {
		seen := make(map[string]bool, len(tokens))
		for _, token := range tokens {
			if seen[token] {
				continue
			}
			seen[token] = true
			st, ok := stats[token]
			if !ok {
				st = &termStat{order: order}
				order++
				stats[token] = st
			}
			st.df++
		}
	}

	minDF := 1
	if maxFeatures > 0 && len(stats) > maxFeatures {
		minDF = 2
	}

	type entry struct {
		term  string
		order int
		df    int
	}
	entries := make([]entry, 0, len(stats))
	for term, st := range stats {
		if st.df < minDF {
			continue
		}
		entries = append(entries, entry{term: term, order: st.order, df: st.df})
	}
	// Pruning everything defeats the purpose; fall back to the full set.
	if len(entries) == 0 {
		for term, st := range stats {
			entries = append(entries, entry{term: term, order: st.order, df: st.df})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	vocab := make(map[string]int, len(entries))
	docFreq := make([]int, len(entries))
	for i, e := range entries {
		vocab[e.term] = i
		docFreq[i] = e.df
	}
	return vocab, docFreq
}

// transform builds l2-normalized TF-IDF rows for the given documents.
func transform(docs [][]string, vocab map[string]int, idf []float64) *mat.Dense {
	rows := len(docs)
	cols := len(idf)
	m := mat.NewDense(rows, cols, nil)
	for i, tokens := range docs {
		counts := make(map[int]int)
		for _, token := range tokens {
			if j, ok := vocab[token]; ok {
				counts[j]++
			}
		}
		norm := 0.0
		for j, count := range counts {
			w := float64(count) * idf[j]
			m.Set(i, j, w)
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range counts {
				m.Set(i, j, m.At(i, j)/norm)
			}
		}
	}
	return m
}

// selectTopK scores every column against the labels with a chi-squared
// statistic over the per-class feature mass and returns the k best column
// indices in ascending order, so both splits stay aligned.
func selectTopK(x *mat.Dense, labels []int, k int) []int {
	rows, cols := x.Dims()
	classes := 0
	for _, y := range labels {
		if y+1 > classes {
			classes = y + 1
		}
	}
	if classes == 0 || rows == 0 {
		return identityColumns(cols)
	}

	classCount := make([]float64, classes)
	for _, y := range labels {
		classCount[y]++
	}

	scores := make([]float64, cols)
	observed := make([]float64, classes)
	for j := 0; j < cols; j++ {
		for c := range observed {
			observed[c] = 0
		}
		total := 0.0
		for i := 0; i < rows; i++ {
			w := x.At(i, j)
			observed[labels[i]] += w
			total += w
		}
		if total == 0 {
			continue
		}
		chi2 := 0.0
		for c := 0; c < classes; c++ {
			expected := total * classCount[c] / float64(rows)
			if expected == 0 {
				continue
			}
			d := observed[c] - expected
			chi2 += d * d / expected
		}
		scores[j] = chi2
	}

	indices := identityColumns(cols)
	sort.Slice(indices, func(a, b int) bool {
		if scores[indices[a]] != scores[indices[b]] {
			return scores[indices[a]] > scores[indices[b]]
		}
		return indices[a] < indices[b]
	})
	indices = indices[:k]
	sort.Ints(indices)
	return indices
}

func identityColumns(n int) []int {
	cols := make([]int, n)
	for i := range cols {
		cols[i] = i
	}
	return cols
}

// keepColumns projects the matrix onto the selected columns, in order.
func keepColumns(x *mat.Dense, selected []int) *mat.Dense {
	rows, _ := x.Dims()
	out := mat.NewDense(rows, len(selected), nil)
	for i := 0; i < rows; i++ {
		for newJ, j := range selected {
			out.Set(i, newJ, x.At(i, j))
		}
	}
	return out
}
