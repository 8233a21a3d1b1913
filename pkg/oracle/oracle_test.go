package oracle

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreJSON(t *testing.T) {
	data, err := json.Marshal(Result{"general": {{"blue eyes", 0.5}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"general": [["blue eyes", 0.5]]}`, string(data))

	var res Result
	require.NoError(t, json.Unmarshal([]byte(`{"rating": [["safe", 0.99], ["explicit", 0.0003]]}`), &res))
	require.Len(t, res["rating"], 2)
	assert.Equal(t, "safe", res["rating"][0].Tag)
	assert.InDelta(t, 0.0003, res["rating"][1].Confidence, 1e-12)
	assert.Equal(t, 2, res.Len())

	for _, malformed := range []string{
		`{"general": [["solo"]]}`,
		`{"general": [[0.5, "solo"]]}`,
		`{"general": ["solo"]}`,
	} {
		assert.Error(t, json.Unmarshal([]byte(malformed), &res), malformed)
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("top")
	require.NoError(t, err)
	assert.Equal(t, StrategyTop, s)

	_, err = ParseStrategy("all")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestReadLabels(t *testing.T) {
	labels, err := ReadLabels(strings.NewReader(`[
		{"name": "1girl", "category": "general"},
		{"name": "safe", "category": "rating"}
	]`))
	require.NoError(t, err)
	assert.Equal(t, []Label{{"1girl", "general"}, {"safe", "rating"}}, labels)

	_, err = ReadLabels(strings.NewReader(`[{"name": "1girl"}]`))
	assert.Error(t, err)
}

func TestSelector(t *testing.T) {
	selector := &Selector{
		Labels: []Label{
			{"1girl", "general"},
			{"solo", "general"},
			{"hat", "general"},
			{"hatsune miku", "character"},
			{"safe", "rating"},
			{"questionable", "rating"},
			{"explicit", "rating"},
		},
		Threshold: 0.5,
		TopCount:  1,
	}
	scores := []float32{0.97, 0.6, 0.2, 0.1, 0.9, 0.08, 0.02}

	plausible, err := selector.Select(StrategyPlausible, scores)
	require.NoError(t, err)
	assert.Equal(t, []string{"1girl", "solo"}, tags(plausible["general"]))
	assert.Empty(t, plausible["character"])
	assert.Len(t, plausible["rating"], 3)

	top, err := selector.Select(StrategyTop, scores)
	require.NoError(t, err)
	assert.Equal(t, []string{"1girl"}, tags(top["general"]))
	assert.Equal(t, []string{"hatsune miku"}, tags(top["character"]))
	assert.Equal(t, []string{"safe", "questionable", "explicit"}, tags(top["rating"]))

	_, err = selector.Select(StrategyTop, scores[:3])
	assert.Error(t, err)
}

func tags(scores []Score) []string {
	out := make([]string, 0, len(scores))
	for _, s := range scores {
		out = append(out, s.Tag)
	}
	return out
}
