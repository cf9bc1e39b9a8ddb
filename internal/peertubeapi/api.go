package peertubeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/tidwall/gjson"
)

// maxPages stops a misbehaving server from paging forever.
const maxPages = 100000

// Page is one listing page. Received counts raw records, including ones
// that could not be decoded, so paging never stalls on a bad record.
type Page struct {
	Items    []catalog.Item
	Received int
	Total    int
}

// ListVideos fetches one page of the catalog.
func (c *Client) ListVideos(ctx context.Context, start, count int) (Page, error) {
	params := url.Values{}
	params.Set("start", strconv.Itoa(start))
	params.Set("count", strconv.Itoa(count))
	// createdAt is not touched by synchronization, so offsets stay stable.
	params.Set("sort", "createdAt")
	params.Set("nsfw", "both")

	b, err := c.doJSON(ctx, http.MethodGet, "/api/v1/videos", params, nil)
	if err != nil {
		return Page{}, err
	}
	if !gjson.ValidBytes(b) {
		return Page{}, fmt.Errorf("decode page at %d: %w", start, catalog.ErrMalformed)
	}
	doc := gjson.ParseBytes(b)
	data := doc
	if doc.IsObject() {
		data = doc.Get("data")
	}
	page := Page{Total: int(doc.Get("total").Int())}
	if !data.IsArray() {
		return page, nil
	}

	items, err := catalog.DecodeList([]byte(data.Raw), c.dateFields, c.log)
	if err != nil {
		return Page{}, fmt.Errorf("decode page at %d: %w", start, err)
	}
	page.Items = items
	page.Received = len(data.Array())
	return page, nil
}

// FetchAll pages through the whole catalog until the first empty page.
func (c *Client) FetchAll(ctx context.Context) ([]catalog.Item, error) {
	var all []catalog.Item
	start := 0
	for pages := 0; pages < maxPages; pages++ {
		page, err := c.ListVideos(ctx, start, c.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list videos: %w", err)
		}
		if page.Received == 0 {
			return all, nil
		}
		all = append(all, page.Items...)
		start += page.Received
		c.log.WithField("start", start).Debugf("fetched %d videos", page.Received)
	}
	return nil, fmt.Errorf("list videos: gave up after %d pages", maxPages)
}

// Get fetches a single video by uuid, short uuid or numeric id.
func (c *Client) Get(ctx context.Context, remoteID string) (catalog.Item, error) {
	b, err := c.doJSON(ctx, http.MethodGet, "/api/v1/videos/"+url.PathEscape(remoteID), nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return catalog.Item{}, fmt.Errorf("video %s: %w", remoteID, catalog.ErrNotFound)
		}
		return catalog.Item{}, err
	}
	if !gjson.ValidBytes(b) {
		return catalog.Item{}, fmt.Errorf("video %s: %w", remoteID, catalog.ErrMalformed)
	}
	it, err := catalog.DecodeItem(gjson.ParseBytes(b), c.dateFields)
	if err != nil {
		return catalog.Item{}, fmt.Errorf("video %s: %w", remoteID, err)
	}
	if err := catalog.RequireTimestampField(it, c.dateFields); err != nil {
		return catalog.Item{}, err
	}
	return it, nil
}

// SetTimestamp updates the video's publication field. PUT by id, so a
// repeated request has the same effect.
func (c *Client) SetTimestamp(ctx context.Context, remoteID string, ts time.Time) error {
	body := map[string]string{c.updateField: catalog.FormatTimestamp(ts)}
	if _, err := c.doJSON(ctx, http.MethodPut, "/api/v1/videos/"+url.PathEscape(remoteID), nil, body); err != nil {
		return err
	}
	return nil
}

var (
	_ catalog.Source  = (*Client)(nil)
	_ catalog.Catalog = (*Client)(nil)
)
