package ics

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "homeboard/internal/log"
)

// FetchResult contains the outcome of fetching a single feed.
type FetchResult struct {
	Feed      Feed
	Body      []byte // ICS payload, freshly fetched or from cache
	FromCache bool   // true when the cached body was reused
}

// cacheEntry holds HTTP cache metadata for a single feed URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher fetches ICS feeds with HTTP caching (ETag / Last-Modified)
// backed by a per-URL disk cache. On network or non-OK failures the last
// cached body is served so a flaky feed keeps its events on the board.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a feed Fetcher. cacheDir is the base directory for
// per-URL cache subdirectories; empty falls back to a relative dir so
// development runs without special permissions.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./data/feed-cache"
	}
	return &Fetcher{
		client: &http.Client{
			// Slow feed hosts get 30s before the cached body takes over.
			Timeout: 30 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// FetchAll fetches all given feeds sequentially (keeping dedup winners
// deterministic downstream) and returns individual results. Feeds with
// an empty URL are skipped silently; other per-feed failures are logged
// and collected in the error slice without blocking remaining feeds.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []Feed) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(feeds))
	errs := make([]error, 0)

	for _, feed := range feeds {
		if strings.TrimSpace(feed.URL) == "" {
			continue
		}
		res, err := f.FetchOne(ctx, feed)
		if err != nil {
			errs = append(errs, err)
			appLog.Error("feed fetch failed", err, "feed", feed.Name, "url", redactURL(feed.URL))
			continue
		}
		results = append(results, res)
	}

	return results, errs
}

// FetchOne fetches a single feed, honoring ETag and Last-Modified from
// the disk cache under the fetcher's cache directory.
func (f *Fetcher) FetchOne(ctx context.Context, feed Feed) (FetchResult, error) {
	if feed.URL == "" {
		return FetchResult{}, errors.New("feed URL is empty")
	}

	fetchURL := NormalizeFeedURL(feed.URL)
	if fetchURL != feed.URL {
		appLog.Info("feed URL normalized", "feed", feed.Name, "url", redactURL(fetchURL))
	}

	cachePath := f.cachePathForURL(fetchURL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar, text/plain, */*")

	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("feed fetch start", "feed", feed.Name, "url", redactURL(fetchURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch network error, using cached body", err, "feed", feed.Name)
			return FetchResult{Feed: feed, Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          fetchURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("feed cache save failed", err, "feed", feed.Name)
		}

		appLog.Info("feed fetched", "feed", feed.Name, "bytes", len(body))
		return FetchResult{Feed: feed, Body: body, FromCache: false}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("feed not modified, using cache", "feed", feed.Name)
		return FetchResult{Feed: feed, Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch non-OK, using cached body", errors.New(resp.Status),
				"feed", feed.Name, "status", resp.StatusCode)
			return FetchResult{Feed: feed, Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, errors.New(resp.Status)
	}
}

// NormalizeFeedURL converts Google Calendar embed/web URLs into their
// public ICS feed form. URLs already pointing at an .ics export, and
// URLs for any other host, pass through unchanged.
//
//	https://calendar.google.com/calendar/embed?src=foo%40group.calendar.google.com
//	  -> https://calendar.google.com/calendar/ical/foo%40group.calendar.google.com/public/basic.ics
//	https://calendar.google.com/calendar/u/1?cid=<base64 id>
//	  -> same shape, with the cid base64-decoded first
func NormalizeFeedURL(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.Contains(raw, "/ical/") && strings.Contains(raw, ".ics") {
		return raw
	}
	if !strings.Contains(raw, "calendar.google.com") {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()

	calendarID := q.Get("src")
	if calendarID == "" {
		if cid := q.Get("cid"); cid != "" {
			calendarID = decodeCalendarCID(cid)
		}
	}
	if calendarID == "" {
		return raw
	}

	return "https://calendar.google.com/calendar/ical/" +
		url.QueryEscape(calendarID) + "/public/basic.ics"
}

// decodeCalendarCID decodes the websafe-base64 cid parameter of Google
// Calendar web URLs. Undecodable values are used as-is, which still
// works when the cid is already a plain calendar ID.
func decodeCalendarCID(cid string) string {
	if b, err := base64.RawURLEncoding.DecodeString(cid); err == nil {
		return string(b)
	}
	if b, err := base64.URLEncoding.DecodeString(cid); err == nil {
		return string(b)
	}
	return cid
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	// First 16 hex chars keep directory names short but collision-safe
	// for household-scale feed counts.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides path and query of a feed URL for logging; secret iCal
// links embed tokens in the path.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
