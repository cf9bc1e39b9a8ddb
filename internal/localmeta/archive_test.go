package localmeta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.PanicLevel)
	return log
}

func writeInfo(t *testing.T, dir, id, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+InfoSuffix), []byte(body), 0o644))
}

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		title   string
		want    time.Time
		hasDate bool
		wantErr error
	}{
		{
			name:    "upload date",
			body:    `{"title":"My Trip 2021","upload_date":"20210501"}`,
			title:   "My Trip 2021",
			want:    time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC),
			hasDate: true,
		},
		{
			name:    "epoch timestamp",
			body:    `{"title":"Clip","timestamp":1619913600}`,
			title:   "Clip",
			want:    time.Date(2021, 5, 2, 0, 0, 0, 0, time.UTC),
			hasDate: true,
		},
		{
			name:    "upload date wins over timestamp",
			body:    `{"title":"Clip","upload_date":"20200101","timestamp":1619913600}`,
			title:   "Clip",
			want:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			hasDate: true,
		},
		{
			name:    "bad upload date falls back to timestamp",
			body:    `{"title":"Clip","upload_date":"2021-05","timestamp":1619913600.7}`,
			title:   "Clip",
			want:    time.Date(2021, 5, 2, 0, 0, 0, 0, time.UTC),
			hasDate: true,
		},
		{
			name:  "no date",
			body:  `{"title":"Clip"}`,
			title: "Clip",
		},
		{
			name:    "no title",
			body:    `{"upload_date":"20210501"}`,
			want:    time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC),
			hasDate: true,
			wantErr: ErrNoTitle,
		},
		{
			name:    "not json",
			body:    `{"title":`,
			wantErr: ErrMalformed,
		},
		{
			name:    "not an object",
			body:    `["title"]`,
			wantErr: ErrMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := ParseInfo("abc", []byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.title, it.Title)
			assert.Equal(t, tt.hasDate, it.HasPublished)
			if tt.hasDate {
				assert.True(t, tt.want.Equal(it.Published), "got %s", it.Published)
				assert.Equal(t, time.UTC, it.Published.Location())
			}
		})
	}
}

func TestArchiveItemsSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeInfo(t, dir, "B2", `{"title":"Cooking Show Ep1","upload_date":"20210502"}`)
	writeInfo(t, dir, "A1", `{"title":"My Trip 2021","upload_date":"20210501"}`)
	writeInfo(t, dir, "C3", `not json`)
	writeInfo(t, dir, "D4", `{"title":""}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A1.mp4"), []byte("x"), 0o644))

	items, err := NewArchive(dir, quietLogger()).Items()
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "A1", items[0].ID)
	assert.Equal(t, "B2", items[1].ID)
}

func TestArchiveItemsMissingDir(t *testing.T) {
	_, err := NewArchive(filepath.Join(t.TempDir(), "nope"), quietLogger()).Items()
	assert.Error(t, err)
}

func TestArchivePublished(t *testing.T) {
	dir := t.TempDir()
	writeInfo(t, dir, "A1", `{"title":"My Trip 2021","upload_date":"20210501"}`)
	writeInfo(t, dir, "A2", `{"title":"No date"}`)
	writeInfo(t, dir, "A3", `{"upload_date":"20210503"}`)

	a := NewArchive(dir, quietLogger())

	ts, ok := a.Published("A1")
	require.True(t, ok)
	assert.Equal(t, "2021-05-01T00:00:00Z", ts.Format(time.RFC3339))

	_, ok = a.Published("A2")
	assert.False(t, ok)

	ts, ok = a.Published("A3")
	require.True(t, ok)
	assert.Equal(t, 3, ts.Day())

	_, ok = a.Published("missing")
	assert.False(t, ok)
}
