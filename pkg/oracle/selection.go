package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Label describes one entry of a model's output vector.
type Label struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// RatingCategory always reports every label, regardless of strategy.
const RatingCategory = "rating"

// LoadLabels reads a JSON tag list: [{"name": "1girl", "category": "general"}, ...].
// The order must match the model's output vector.
func LoadLabels(path string) ([]Label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tag list: %w", err)
	}
	defer f.Close()

	return ReadLabels(f)
}

func ReadLabels(r io.Reader) ([]Label, error) {
	var labels []Label
	if err := json.NewDecoder(r).Decode(&labels); err != nil {
		return nil, fmt.Errorf("failed to decode tag list: %w", err)
	}
	for i, label := range labels {
		if label.Name == "" || label.Category == "" {
			return nil, fmt.Errorf("tag list entry %d is missing name or category", i)
		}
	}
	return labels, nil
}

// Selector turns a raw score vector into a Result.
type Selector struct {
	Labels    []Label
	Threshold float64
	TopCount  int
}

func (s *Selector) Select(strategy Strategy, scores []float32) (Result, error) {
	if len(scores) != len(s.Labels) {
		return nil, fmt.Errorf("model returned %d scores for %d labels", len(scores), len(s.Labels))
	}

	grouped := make(Result)
	for i, label := range s.Labels {
		grouped[label.Category] = append(grouped[label.Category], Score{
			Tag:        label.Name,
			Confidence: float64(scores[i]),
		})
	}

	for category, all := range grouped {
		SortScores(all)
		if category == RatingCategory {
			continue
		}

		switch strategy {
		case StrategyPlausible:
			grouped[category] = aboveThreshold(all, s.Threshold)
		case StrategyTop:
			if s.TopCount >= 0 && len(all) > s.TopCount {
				grouped[category] = all[:s.TopCount]
			}
		default:
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownStrategy, strategy)
		}
	}

	return grouped, nil
}

// aboveThreshold expects scores sorted highest first.
func aboveThreshold(scores []Score, threshold float64) []Score {
	for i, s := range scores {
		if s.Confidence < threshold {
			return scores[:i]
		}
	}
	return scores
}
