package estimation

import (
	"github.com/mwantia/illustag/pkg/db/models"
	"github.com/mwantia/illustag/pkg/db/store"
	"github.com/mwantia/illustag/pkg/oracle"
)

// Entry is one estimated tag as handed to the presentation layer.
type Entry struct {
	TagID      uint          `json:"tag_id"`
	Tag        string        `json:"tag"`
	Value      string        `json:"value"`
	Confidence float64       `json:"confidence"`
	Status     models.Status `json:"status,omitempty"`
}

// Estimations groups entries by category. The default categories are
// always present, possibly with an empty list.
type Estimations map[string][]Entry

func newEstimations() Estimations {
	est := make(Estimations, len(oracle.Categories))
	for _, category := range oracle.Categories {
		est[category] = []Entry{}
	}
	return est
}

func fromRows(rows []store.EstimationRow) Estimations {
	est := newEstimations()
	for _, row := range rows {
		est[row.Namespace] = append(est[row.Namespace], Entry{
			TagID:      row.TagID,
			Tag:        row.Fullname(),
			Value:      row.TagValue,
			Confidence: row.Value,
		})
	}
	return est
}

// Len returns the number of entries across all categories.
func (e Estimations) Len() int {
	n := 0
	for _, entries := range e {
		n += len(entries)
	}
	return n
}

func (e Estimations) Empty() bool {
	return e.Len() == 0
}

// Simple projects the entries to bare (tag, confidence) pairs.
func (e Estimations) Simple() oracle.Result {
	res := make(oracle.Result, len(e))
	for category, entries := range e {
		scores := make([]oracle.Score, len(entries))
		for i, entry := range entries {
			scores[i] = oracle.Score{Tag: entry.Value, Confidence: entry.Confidence}
		}
		res[category] = scores
	}
	return res
}
