// Package oracle defines the contract of the tag estimation model and the
// composite strategy that merges its two base strategies.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
)

// Strategy selects how the model turns raw scores into tags.
type Strategy string

const (
	// StrategyPlausible reports every tag whose score passes a threshold.
	StrategyPlausible Strategy = "plausible"
	// StrategyTop reports the best scoring tags of each category.
	StrategyTop Strategy = "top"
	// StrategyAll merges plausible and top. It is composed by the Aggregator
	// and never sent to an Oracle.
	StrategyAll Strategy = "all"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyPlausible, StrategyTop:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnknownStrategy, s)
	}
}

// Categories are the namespaces every consumer can rely on being present.
var Categories = []string{"character", "copyright", "general", "rating"}

var ErrUnknownStrategy = errors.New("unknown strategy")

// Oracle estimates tags for a decoded image. Implementations must be safe
// for concurrent use; the composite strategy calls both base strategies at once.
type Oracle interface {
	Estimate(ctx context.Context, img image.Image, strategy Strategy) (Result, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, img image.Image, strategy Strategy) (Result, error)

func (f Func) Estimate(ctx context.Context, img image.Image, strategy Strategy) (Result, error) {
	return f(ctx, img, strategy)
}

// Result maps a category name to its scored tags.
type Result map[string][]Score

// Len returns the number of scores across all categories.
func (r Result) Len() int {
	n := 0
	for _, scores := range r {
		n += len(scores)
	}
	return n
}

// Score is a tag value with the model's confidence. It is encoded as a
// two element JSON array, ["blue eyes", 0.93].
type Score struct {
	Tag        string
	Confidence float64
}

func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Tag, s.Confidence})
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("score must be a [tag, confidence] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("score must be a [tag, confidence] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Tag); err != nil {
		return fmt.Errorf("invalid score tag: %w", err)
	}
	if err := json.Unmarshal(pair[1], &s.Confidence); err != nil {
		return fmt.Errorf("invalid score confidence: %w", err)
	}
	return nil
}
