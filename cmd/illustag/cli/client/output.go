package client

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/mwantia/illustag/pkg/oracle"
)

const (
	outputDefault = "default"
	outputPretty  = "pprint"
	outputJSON    = "json"
)

func validOutput(format string) error {
	switch format {
	case outputDefault, outputPretty, outputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format '%s' (expected default, pprint or json)", format)
	}
}

func writeJSON(w io.Writer, format string, v any) error {
	enc := json.NewEncoder(w)
	if format == outputPretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// categories returns the well-known categories first, then any others sorted.
func categories[T any](m map[string]T) []string {
	names := slices.Clone(oracle.Categories)
	var extra []string
	for name := range m {
		if !slices.Contains(names, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

func writeResult(w io.Writer, format string, result oracle.Result) error {
	if format != outputDefault {
		return writeJSON(w, format, result)
	}

	for _, category := range categories(result) {
		fmt.Fprintf(w, "%s:\n", category)
		for _, score := range result[category] {
			fmt.Fprintf(w, "  %-40s %.4f\n", score.Tag, score.Confidence)
		}
	}
	return nil
}
