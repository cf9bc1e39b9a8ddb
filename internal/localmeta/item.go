package localmeta

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// InfoSuffix is the yt-dlp metadata file suffix. The local id is the file
// name without it.
const InfoSuffix = ".info.json"

const uploadDateLayout = "20060102"

var (
	ErrMalformed = errors.New("malformed metadata record")
	ErrNoTitle   = errors.New("metadata record has no title")
)

// Item is one archived video. It is never modified by this tool.
type Item struct {
	ID    string
	Title string

	// Published is the original publication instant in UTC, truncated to
	// the second. Only meaningful when HasPublished is set.
	Published    time.Time
	HasPublished bool
}

// ParseInfo decodes one info.json document. A record without a title is
// still returned together with ErrNoTitle so callers that only need the
// timestamp can use it.
func ParseInfo(id string, data []byte) (Item, error) {
	if !gjson.ValidBytes(data) {
		return Item{}, fmt.Errorf("%s: %w", id, ErrMalformed)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Item{}, fmt.Errorf("%s: %w: not an object", id, ErrMalformed)
	}

	it := Item{
		ID:    id,
		Title: strings.TrimSpace(doc.Get("title").String()),
	}
	if ts, ok := publishedAt(doc); ok {
		it.Published = ts
		it.HasPublished = true
	}
	if it.Title == "" {
		return it, fmt.Errorf("%s: %w", id, ErrNoTitle)
	}
	return it, nil
}

// ParseInfoReader parses info.json data from any io.Reader
func ParseInfoReader(id string, r io.Reader) (Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Item{}, fmt.Errorf("read %s: %w", id, err)
	}
	return ParseInfo(id, data)
}

// publishedAt prefers the 8-digit upload_date and falls back to the epoch
// timestamp.
func publishedAt(doc gjson.Result) (time.Time, bool) {
	if d := strings.TrimSpace(doc.Get("upload_date").String()); d != "" {
		if t, err := ParseUploadDate(d); err == nil {
			return t, true
		}
	}
	ts := doc.Get("timestamp")
	if ts.Type == gjson.Number {
		return time.Unix(ts.Int(), 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseUploadDate parses a YYYYMMDD date as midnight UTC.
func ParseUploadDate(s string) (time.Time, error) {
	if len(s) != len(uploadDateLayout) {
		return time.Time{}, fmt.Errorf("upload date %q: want YYYYMMDD", s)
	}
	t, err := time.ParseInLocation(uploadDateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("upload date %q: %w", s, err)
	}
	return t, nil
}
