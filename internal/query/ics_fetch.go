package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	appLog "querycal/internal/log"
)

// Feed is a single ICS subscription.
type Feed struct {
	// ID names the feed in logs and in the "calendar" column of its rows.
	ID  string
	URL string
}

// feedBody is the outcome of fetching one feed.
type feedBody struct {
	Feed      Feed
	Body      []byte
	FromCache bool // true when the cached body was reused
}

// cacheMeta holds the HTTP validators of one cached feed.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// feedFetcher downloads ICS feeds with conditional requests and keeps the
// last good body on disk so an unreachable feed still yields rows.
type feedFetcher struct {
	client   *http.Client
	cacheDir string
}

func newFeedFetcher(cacheDir string) *feedFetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	return &feedFetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// fetchAll fetches every feed. Feeds that fail without a cached fallback
// are logged and reported in the error slice.
func (f *feedFetcher) fetchAll(ctx context.Context, feeds []Feed) ([]feedBody, []error) {
	out := make([]feedBody, 0, len(feeds))
	var errs []error

	for _, feed := range feeds {
		b, err := f.fetch(ctx, feed)
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", feed.ID, "url", redactURL(feed.URL))
			errs = append(errs, errors.Wrapf(err, "feed %s", feed.ID))
			continue
		}
		out = append(out, b)
	}
	return out, errs
}

func (f *feedFetcher) fetch(ctx context.Context, feed Feed) (feedBody, error) {
	if feed.URL == "" {
		return feedBody{}, errors.New("feed URL is empty")
	}

	dir := f.cacheDirFor(feed.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return feedBody{}, errors.Wrap(err, "create cache dir")
	}

	meta, _ := loadCacheMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	fallback := func(reason error) (feedBody, error) {
		if len(cached) == 0 {
			return feedBody{}, reason
		}
		appLog.Warn("ics fetch failed, using cached body", "err", reason, "id", feed.ID, "url", redactURL(feed.URL))
		return feedBody{Feed: feed, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return feedBody{}, errors.Wrap(err, "build request")
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback(errors.Wrap(err, "read body"))
		}
		next := cacheMeta{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(dir, next, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", feed.ID)
		}
		appLog.Debug("ics fetch success", "id", feed.ID, "bytes", len(body))
		return feedBody{Feed: feed, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return feedBody{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics feed not modified", "id", feed.ID)
		return feedBody{Feed: feed, Body: cached, FromCache: true}, nil

	default:
		return fallback(errors.New(resp.Status))
	}
}

// cacheDirFor keys the cache by the first 8 bytes of the URL's SHA-256.
func (f *feedFetcher) cacheDirFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// saveCache writes the body before the metadata so the metadata never
// refers to a missing body.
func saveCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host so feed tokens never reach logs.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
