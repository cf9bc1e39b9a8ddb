package match

import "github.com/Another0Noob/peertube-import/internal/localmeta"

// TitleIndex maps normalized titles to local ids. Buckets keep the order
// items were supplied in; keys keep first-seen order so fuzzy scans are
// deterministic.
type TitleIndex struct {
	buckets map[string][]string
	keys    []string

	// Skipped lists local ids whose title had no usable characters.
	Skipped []string
}

// BuildIndex never fails; items without a usable title are skipped.
func BuildIndex(items []localmeta.Item) *TitleIndex {
	idx := &TitleIndex{buckets: make(map[string][]string, len(items))}
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if it.Title == "" {
			idx.Skipped = append(idx.Skipped, it.ID)
			continue
		}
		idx.Add(Normalize(it.Title), it.ID)
	}
	return idx
}

// Add appends localID to the bucket for an already normalized key.
func (idx *TitleIndex) Add(key, localID string) {
	if key == "" {
		idx.Skipped = append(idx.Skipped, localID)
		return
	}
	if idx.buckets == nil {
		idx.buckets = make(map[string][]string)
	}
	if _, ok := idx.buckets[key]; !ok {
		idx.keys = append(idx.keys, key)
	}
	idx.buckets[key] = append(idx.buckets[key], localID)
}

// Lookup returns the bucket for a normalized key.
func (idx *TitleIndex) Lookup(key string) ([]string, bool) {
	ids, ok := idx.buckets[key]
	return ids, ok && len(ids) > 0
}

func (idx *TitleIndex) Keys() []string { return idx.keys }

func (idx *TitleIndex) Len() int { return len(idx.keys) }
