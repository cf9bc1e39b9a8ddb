package match

import "fmt"

// DefaultThreshold is the minimum similarity for a fuzzy match. Leaving an
// item unmatched is preferred over pairing it with the wrong one.
const DefaultThreshold = 0.9

type Kind string

const (
	KindNone      Kind = "no_match"
	KindExact     Kind = "exact"
	KindFuzzy     Kind = "fuzzy"
	KindAmbiguous Kind = "ambiguous"
)

// Result describes how a remote title was resolved.
type Result struct {
	LocalID string
	Kind    Kind
	// Key is the index key that matched; for ambiguous results, the
	// candidates that tied.
	Key        string
	Candidates []string
	Score      float64
}

func (r Result) Matched() bool {
	return r.Kind == KindExact || r.Kind == KindFuzzy
}

type Config struct {
	Threshold float64
	Metric    string
}

func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, Metric: RatioMetric.Name}
}

type Matcher struct {
	threshold float64
	metric    Metric
}

func NewMatcher(cfg Config) (*Matcher, error) {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v out of range (0, 1]", cfg.Threshold)
	}
	m, err := MetricByName(cfg.Metric)
	if err != nil {
		return nil, err
	}
	return &Matcher{threshold: cfg.Threshold, metric: m}, nil
}

func (m *Matcher) Threshold() float64 { return m.threshold }

// Match resolves a remote title against the local index: an exact key hit
// wins outright, otherwise the single closest key at or above the
// threshold. Ties for the best score are reported as ambiguous and not
// matched.
func (m *Matcher) Match(remoteTitle string, idx *TitleIndex) Result {
	key := Normalize(remoteTitle)
	if key == "" || idx == nil || idx.Len() == 0 {
		return Result{Kind: KindNone}
	}

	if ids, ok := idx.Lookup(key); ok {
		return Result{LocalID: ids[0], Kind: KindExact, Key: key, Score: 1}
	}

	var (
		best      float64
		bestKeys  []string
		haveScore bool
	)
	for _, cand := range idx.Keys() {
		if m.metric.Bound != nil && m.metric.Bound(cand, key) < m.threshold {
			continue
		}
		score := m.metric.Score(cand, key)
		if score < m.threshold {
			continue
		}
		switch {
		case !haveScore || score > best:
			best, bestKeys, haveScore = score, []string{cand}, true
		case score == best:
			bestKeys = append(bestKeys, cand)
		}
	}

	switch len(bestKeys) {
	case 0:
		return Result{Kind: KindNone}
	case 1:
		ids, _ := idx.Lookup(bestKeys[0])
		return Result{LocalID: ids[0], Kind: KindFuzzy, Key: bestKeys[0], Score: best}
	default:
		return Result{Kind: KindAmbiguous, Candidates: bestKeys, Score: best}
	}
}
