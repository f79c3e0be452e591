package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"homeboard/internal/config"
	"homeboard/internal/ics"
	appLog "homeboard/internal/log"
	"homeboard/internal/model"
	"homeboard/internal/settings"
)

// eventsCacheTTL bounds how stale the merged event set served to the
// dashboard may get between background refreshes.
const eventsCacheTTL = 30 * time.Second

// Server provides the dashboard HTTP API: aggregated calendar events,
// the day-bucketed grid, and settings persistence, plus the embedded
// static dashboard itself.
type Server struct {
	cfg     *config.Config
	store   *settings.Store
	fetcher *ics.Fetcher
	loc     *time.Location
	mux     *http.ServeMux

	// In-memory cache of the fetch+parse+merge pipeline so every widget
	// poll does not hit the upstream feeds.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
}

type eventsCache struct {
	events    []model.Event
	updatedAt time.Time
}

// embeddedStatic contains the dashboard's static frontend build.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a Server from the given configuration.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:     cfg,
		store:   settings.NewStore(cfg.SettingsPath),
		fetcher: ics.NewFetcher(cfg.CacheDir),
		loc:     resolveLocationOrLocal(cfg.Timezone),
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the server's http.Handler, with Basic Auth wrapped
// around everything but /health when credentials are configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials are treated as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays reachable for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Homeboard", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/grid", s.handleGrid)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Refresh runs the feed pipeline and replaces the cached merged event
// set. Per-feed failures are logged and swallowed; an empty calendar is
// a displayable state, not a failure.
func (s *Server) Refresh(ctx context.Context) {
	feeds := make([]ics.Feed, 0, len(s.cfg.Feeds))
	for _, fc := range s.cfg.Feeds {
		feeds = append(feeds, ics.Feed{Name: fc.Name, URL: fc.URL, Color: fc.Color})
	}

	opts := ics.ParseOptions{Location: s.loc}
	merged, errs := ics.Aggregate(ctx, s.fetcher, feeds, opts)
	if len(errs) > 0 {
		appLog.Error("one or more feeds failed during refresh",
			errorsAggregate(errs), "error_count", len(errs))
	}

	s.eventsMu.Lock()
	s.eventsCache = &eventsCache{events: merged, updatedAt: time.Now()}
	s.eventsMu.Unlock()
}

// mergedEvents returns the cached merged event set, refreshing it first
// when stale or absent.
func (s *Server) mergedEvents(ctx context.Context) []model.Event {
	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec != nil && time.Since(ec.updatedAt) < eventsCacheTTL {
		return ec.events
	}

	s.Refresh(ctx)

	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	if s.eventsCache == nil {
		return nil
	}
	return s.eventsCache.events
}

// eventDTO is the JSON view of one normalized event.
type eventDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Salvaged    bool      `json:"salvaged,omitempty"`
	Color       string    `json:"color"`
	Source      string    `json:"source"`
}

// projectionDTO is one event's appearance on a single grid day.
type projectionDTO struct {
	eventDTO
	SpanStart  bool `json:"span_start"`
	SpanEnd    bool `json:"span_end"`
	SpanMiddle bool `json:"span_middle"`
	MultiDay   bool `json:"multi_day"`
	SpanDays   int  `json:"span_days,omitempty"`
}

type dayDTO struct {
	Date   string          `json:"date"`
	Events []projectionDTO `json:"events"`
}

type eventsResponse struct {
	Events     []eventDTO `json:"events"`
	RangeStart time.Time  `json:"range_start"`
	RangeEnd   time.Time  `json:"range_end"`
	Timezone   string     `json:"timezone"`
}

type gridResponse struct {
	Days       []dayDTO  `json:"days"`
	RangeStart string    `json:"range_start"`
	RangeEnd   string    `json:"range_end"`
	Timezone   string    `json:"timezone"`
	WeekStart  string    `json:"week_start"`
	Today      string    `json:"today"`
	Generated  time.Time `json:"generated"`
}

func toEventDTO(ev model.Event) eventDTO {
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       ev.Start,
		End:         ev.End,
		AllDay:      ev.AllDay,
		Salvaged:    ev.Salvaged,
		Color:       ev.Color,
		Source:      ev.SourceName,
	}
}

// handleEvents returns the flat deduplicated agenda list overlapping the
// requested window.
//
// GET /api/events?days=28&backfill=1
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.WeeksAhead*7)
	if days <= 0 {
		days = s.cfg.WeeksAhead * 7
	}
	backfill := parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}

	now := time.Now().In(s.loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	events := s.mergedEvents(r.Context())

	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		if !ics.Overlaps(ev, rangeStart, rangeEnd) {
			continue
		}
		dtos = append(dtos, toEventDTO(ev))
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:     dtos,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Timezone:   s.loc.String(),
	})
}

// handleGrid returns the day-bucketed calendar grid starting at the most
// recent configured week-start day.
//
// GET /api/grid?weeks=5
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	weeks := parseIntDefault(r.URL.Query().Get("weeks"), s.cfg.WeeksAhead+1)
	if weeks <= 0 {
		weeks = s.cfg.WeeksAhead + 1
	}
	days := weeks * 7

	now := time.Now().In(s.loc)
	gridStart := ics.GridStart(now, s.cfg.WeekStart, s.loc)

	events := s.mergedEvents(r.Context())
	buckets := ics.ProjectDays(events, gridStart, days, s.loc)

	dayDTOs := make([]dayDTO, 0, len(buckets))
	for _, b := range buckets {
		projections := make([]projectionDTO, 0, len(b.Events))
		for _, p := range b.Events {
			projections = append(projections, projectionDTO{
				eventDTO:   toEventDTO(p.Event),
				SpanStart:  p.IsSpanStart,
				SpanEnd:    p.IsSpanEnd,
				SpanMiddle: p.IsSpanMiddle,
				MultiDay:   p.IsMultiDay,
				SpanDays:   p.SpanDays,
			})
		}
		dayDTOs = append(dayDTOs, dayDTO{
			Date:   b.Date.Format("2006-01-02"),
			Events: projections,
		})
	}

	resp := gridResponse{
		Days:      dayDTOs,
		Timezone:  s.loc.String(),
		WeekStart: s.cfg.WeekStart,
		Today:     now.Format("2006-01-02"),
		Generated: time.Now(),
	}
	if len(dayDTOs) > 0 {
		resp.RangeStart = dayDTOs[0].Date
		resp.RangeEnd = dayDTOs[len(dayDTOs)-1].Date
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSettings serves and persists the dashboard's opaque settings
// document.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		doc, err := s.store.Load()
		if err != nil {
			appLog.Error("settings load failed", err)
			writeError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)

	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if err := s.store.Save(body); err != nil {
			appLog.Error("settings save failed", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// staticFileServer serves the embedded dashboard frontend. API paths are
// never answered with HTML.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "dashboard UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone, falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func errorsAggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
