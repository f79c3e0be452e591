package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeFeedURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "ics url passes through",
			in:   "https://calendar.google.com/calendar/ical/foo%40gmail.com/private-abc/basic.ics",
			want: "https://calendar.google.com/calendar/ical/foo%40gmail.com/private-abc/basic.ics",
		},
		{
			name: "non-google url passes through",
			in:   "https://example.com/shared/family.ics?token=xyz",
			want: "https://example.com/shared/family.ics?token=xyz",
		},
		{
			name: "embed url with src",
			in:   "https://calendar.google.com/calendar/embed?src=foo%40group.calendar.google.com&ctz=UTC",
			want: "https://calendar.google.com/calendar/ical/foo%40group.calendar.google.com/public/basic.ics",
		},
		{
			name: "web url with base64 cid",
			// "foo@group.calendar.google.com" in websafe base64.
			in:   "https://calendar.google.com/calendar/u/1?cid=Zm9vQGdyb3VwLmNhbGVuZGFyLmdvb2dsZS5jb20",
			want: "https://calendar.google.com/calendar/ical/foo%40group.calendar.google.com/public/basic.ics",
		},
		{
			name: "google url without id passes through",
			in:   "https://calendar.google.com/calendar/u/0/r",
			want: "https://calendar.google.com/calendar/u/0/r",
		},
		{
			name: "surrounding whitespace trimmed",
			in:   "  https://example.com/cal.ics  ",
			want: "https://example.com/cal.ics",
		},
	}

	for _, tc := range cases {
		if got := NormalizeFeedURL(tc.in); got != tc.want {
			t.Errorf("%s: NormalizeFeedURL(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://example.com/path/to/private.ics?token=abcd")
	if got != "https://example.com/...(redacted)" {
		t.Fatalf("redactURL = %q", got)
	}
	if got := redactURL("no scheme here"); got != "ics://...(redacted)" {
		t.Fatalf("redactURL = %q", got)
	}
}

const fetchTestBody = "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"

func TestFetchOne_CachesAndRevalidates(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(fetchTestBody))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	feed := Feed{Name: "test", URL: srv.URL}

	res, err := f.FetchOne(context.Background(), feed)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if res.FromCache || string(res.Body) != fetchTestBody {
		t.Fatalf("first fetch = fromCache=%v body=%q", res.FromCache, res.Body)
	}

	res, err = f.FetchOne(context.Background(), feed)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !res.FromCache {
		t.Fatal("expected second fetch to be served from cache via 304")
	}
	if string(res.Body) != fetchTestBody {
		t.Fatalf("cached body = %q", res.Body)
	}
	if requests != 2 {
		t.Fatalf("server saw %d requests, want 2", requests)
	}
}

func TestFetchOne_NonOKFallsBackToCache(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "gone fishing", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(fetchTestBody))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	feed := Feed{Name: "test", URL: srv.URL}

	if _, err := f.FetchOne(context.Background(), feed); err != nil {
		t.Fatalf("priming fetch: %v", err)
	}

	fail = true
	res, err := f.FetchOne(context.Background(), feed)
	if err != nil {
		t.Fatalf("expected cached fallback, got error: %v", err)
	}
	if !res.FromCache || string(res.Body) != fetchTestBody {
		t.Fatalf("fallback = fromCache=%v body=%q", res.FromCache, res.Body)
	}
}

func TestFetchAll_SkipsEmptyURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fetchTestBody))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	feeds := []Feed{
		{Name: "empty"},
		{Name: "ok", URL: srv.URL},
		{Name: "blank", URL: "   "},
	}

	results, errs := f.FetchAll(context.Background(), feeds)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(results) != 1 || results[0].Feed.Name != "ok" {
		t.Fatalf("results = %+v, want only the ok feed", results)
	}
}
