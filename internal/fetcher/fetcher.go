// Package fetcher reads split and segment changes from the SDK REST API.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stacklok/flagsync/internal/httpclient"
	"github.com/stacklok/flagsync/internal/storage"
)

const (
	splitChangesPath   = "splitChanges"
	segmentChangesPath = "segmentChanges"
)

// SplitChanges is one page of split changes. The caller is up to date once
// Till equals Since.
type SplitChanges struct {
	Splits []storage.Split
	Since  int64
	Till   int64
}

// SegmentChanges is one page of changes to a segment's keys
type SegmentChanges struct {
	Name    string
	Added   []string
	Removed []string
	Since   int64
	Till    int64
}

// Fetcher reads changes from the SDK API
//
//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks -source=fetcher.go Fetcher
type Fetcher interface {
	// FetchSplitChanges returns split changes after since. A positive till
	// asks for changes up to that change number and bypasses caches.
	FetchSplitChanges(ctx context.Context, since, till int64) (*SplitChanges, error)

	// FetchSegmentChanges returns changes to a segment after since
	FetchSegmentChanges(ctx context.Context, name string, since, till int64) (*SegmentChanges, error)
}

type httpFetcher struct {
	client  httpclient.Client
	baseURL *url.URL
}

// New creates a Fetcher for the SDK API at sdkURL
func New(client httpclient.Client, sdkURL string) (Fetcher, error) {
	base, err := url.Parse(strings.TrimSuffix(sdkURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid SDK URL %q: %w", sdkURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid SDK URL %q: scheme and host are required", sdkURL)
	}
	return &httpFetcher{client: client, baseURL: base}, nil
}

func (f *httpFetcher) changesURL(since, till int64, path ...string) string {
	u := f.baseURL.JoinPath(path...)
	query := url.Values{}
	query.Set("since", strconv.FormatInt(since, 10))
	if till > 0 {
		query.Set("till", strconv.FormatInt(till, 10))
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// FetchSplitChanges implements Fetcher
func (f *httpFetcher) FetchSplitChanges(ctx context.Context, since, till int64) (*SplitChanges, error) {
	body, err := f.client.Get(ctx, f.changesURL(since, till, splitChangesPath))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch split changes: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("split changes response is not valid JSON")
	}

	result := gjson.ParseBytes(body)
	changes := &SplitChanges{
		Since: result.Get("since").Int(),
		Till:  result.Get("till").Int(),
	}

	var splitErr error
	result.Get("splits").ForEach(func(_, value gjson.Result) bool {
		split, err := storage.SplitFromJSON([]byte(value.Raw))
		if err != nil {
			splitErr = err
			return false
		}
		changes.Splits = append(changes.Splits, split)
		return true
	})
	if splitErr != nil {
		return nil, fmt.Errorf("invalid split in changes: %w", splitErr)
	}
	return changes, nil
}

// FetchSegmentChanges implements Fetcher
func (f *httpFetcher) FetchSegmentChanges(ctx context.Context, name string, since, till int64) (*SegmentChanges, error) {
	body, err := f.client.Get(ctx, f.changesURL(since, till, segmentChangesPath, name))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changes for segment %s: %w", name, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("changes for segment %s are not valid JSON", name)
	}

	result := gjson.ParseBytes(body)
	changes := &SegmentChanges{
		Name:    result.Get("name").String(),
		Added:   stringArray(result.Get("added")),
		Removed: stringArray(result.Get("removed")),
		Since:   result.Get("since").Int(),
		Till:    result.Get("till").Int(),
	}
	if changes.Name == "" {
		changes.Name = name
	}
	return changes, nil
}

func stringArray(r gjson.Result) []string {
	items := r.Array()
	if len(items) == 0 {
		return nil
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		values = append(values, item.String())
	}
	return values
}
