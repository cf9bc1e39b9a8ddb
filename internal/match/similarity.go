package match

import (
	"fmt"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pmezard/go-difflib/difflib"
)

// Metric scores two normalized keys in [0, 1].
type Metric struct {
	Name  string
	Score func(a, b string) float64
	// Bound is an optional cheap upper bound of Score, used to skip
	// candidates that cannot reach the threshold.
	Bound func(a, b string) float64
}

var (
	// RatioMetric is the Ratcliff/Obershelp "gestalt" ratio 2*M/T, where M
	// is the total size of the longest matching blocks.
	RatioMetric = Metric{Name: "ratio", Score: Ratio, Bound: ratioBound}

	// LevenshteinMetric is 1 - distance/longest length.
	LevenshteinMetric = Metric{Name: "levenshtein", Score: Levenshtein}
)

// MetricByName resolves the MATCH_METRIC setting.
func MetricByName(name string) (Metric, error) {
	switch name {
	case "", RatioMetric.Name:
		return RatioMetric, nil
	case LevenshteinMetric.Name:
		return LevenshteinMetric, nil
	default:
		return Metric{}, fmt.Errorf("unknown similarity metric %q", name)
	}
}

// Ratio scores a against b by recursively taking the longest common block
// and matching the pieces on either side of it.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(runeSeq(a), runeSeq(b)).Ratio()
}

// ratioBound is difflib's quick ratio, an upper bound of Ratio that skips
// the block search.
func ratioBound(a, b string) float64 {
	return difflib.NewMatcher(runeSeq(a), runeSeq(b)).QuickRatio()
}

// runeSeq splits s into one element per rune so multi-byte letters count
// once.
func runeSeq(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Levenshtein scores by edit distance relative to the longer key.
func Levenshtein(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	d := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(d)/float64(longest)
}
