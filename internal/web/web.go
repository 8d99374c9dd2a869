package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"minkal/internal/config"
	"minkal/internal/layout"
	appLog "minkal/internal/log"
	"minkal/internal/settings"
	"minkal/internal/state"
)

// Options configure a Server.
type Options struct {
	State *state.State

	// Preferences may be nil; /api/settings then reports defaults.
	Preferences state.Preferences

	// Calendars are the configured calendar names, offered for selection
	// even when they currently have no events.
	Calendars []string

	BasicAuth *config.BasicAuthConfig
}

// Server exposes the layout state as JSON for a rendering client.
type Server struct {
	state     *state.State
	prefs     state.Preferences
	calendars []string
	auth      *config.BasicAuthConfig
	mux       *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	s := &Server{
		state:     opts.State,
		prefs:     opts.Preferences,
		calendars: opts.Calendars,
		auth:      opts.BasicAuth,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := logRequests(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on listen until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /api/now", s.handleNow)
	s.mux.HandleFunc("GET /api/calendars", s.handleCalendars)
	s.mux.HandleFunc("POST /api/calendars/toggle", s.handleToggle)
	s.mux.HandleFunc("GET /api/settings", s.handleSettings)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	// Empty username or password disables auth.
	return s.auth != nil && s.auth.Username != "" && s.auth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.auth.Username
	password := s.auth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="minkal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// cellEventDTO is one event inside a week grid cell.
type cellEventDTO struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Label    string           `json:"label"`
	Calendar string           `json:"calendar"`
	Kind     layout.EventKind `json:"kind"`
	Start    time.Time        `json:"start"`
}

type dayCellDTO struct {
	Date   string         `json:"date"`
	Tense  layout.Tense   `json:"tense"`
	Events []cellEventDTO `json:"events"`
}

type weekResponse struct {
	Start         string         `json:"start"`
	End           string         `json:"end"`
	Selected      []string       `json:"selected_calendars"`
	ShowEventTime bool           `json:"show_event_time"`
	DimOpacity    float64        `json:"dim_opacity"`
	Weeks         [][]dayCellDTO `json:"weeks"`
}

// handleWeek returns the 4x7 grid.
//
// GET /api/week?date=2024-03-13
//   - date: anchor day (default today)
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	anchor, err := s.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	view := s.state.Week(r.Context(), anchor)
	resp := weekResponse{
		Start:         view.Grid.Start.Format(time.DateOnly),
		End:           view.Grid.End().Format(time.DateOnly),
		Selected:      view.Selected,
		ShowEventTime: view.ShowEventTime,
		DimOpacity:    view.DimOpacity,
		Weeks:         make([][]dayCellDTO, 0, layout.GridRows),
	}
	for _, row := range view.Grid.Rows {
		week := make([]dayCellDTO, 0, layout.GridColumns)
		for _, cell := range row {
			dto := dayCellDTO{
				Date:   cell.Date.Format(time.DateOnly),
				Tense:  cell.Tense,
				Events: make([]cellEventDTO, 0, len(cell.Events)),
			}
			for _, ce := range cell.Events {
				dto.Events = append(dto.Events, cellEventDTO{
					ID:       ce.Event.ID,
					Title:    ce.Event.Title,
					Label:    ce.Label(view.ShowEventTime),
					Calendar: ce.Event.CalendarName,
					Kind:     ce.Kind,
					Start:    ce.Event.Start,
				})
			}
			week = append(week, dto)
		}
		resp.Weeks = append(resp.Weeks, week)
	}
	writeJSON(w, http.StatusOK, resp)
}

type entryDTO struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Calendar   string    `json:"calendar"`
	Start      time.Time `json:"start"`
	AllDay     bool      `json:"all_day"`
	YPixel     float64   `json:"y"`
	StackIndex int       `json:"stack_index"`
}

type dayResponse struct {
	Date         string            `json:"date"`
	Calendar     string            `json:"calendar,omitempty"`
	Window       string            `json:"window"`
	TrackHeight  float64           `json:"track_height"`
	CurrentTimeY *float64          `json:"current_time_y,omitempty"`
	HourMarks    []layout.HourMark `json:"hour_marks"`
	Entries      []entryDTO        `json:"entries"`
}

// handleDay returns the positioned timeline for one day.
//
// GET /api/day?date=2024-03-13&calendar=Home
//   - date:     day to show (default today)
//   - calendar: restrict to one calendar (default: user's timeline calendar
//     or the week selection)
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := s.parseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	view := s.state.Day(r.Context(), date, q.Get("calendar"))
	tl := s.state.Timeline()
	resp := dayResponse{
		Date:        view.Date.Format(time.DateOnly),
		Calendar:    view.Calendar,
		Window:      tl.Window.String(),
		TrackHeight: tl.TrackHeight,
		HourMarks:   view.HourMarks,
		Entries:     make([]entryDTO, 0, len(view.Entries)),
	}
	if view.IsToday {
		y := view.CurrentTimeY
		resp.CurrentTimeY = &y
	}
	for _, e := range view.Entries {
		resp.Entries = append(resp.Entries, entryDTO{
			ID:         e.Event.ID,
			Title:      e.Event.Title,
			Calendar:   e.Event.CalendarName,
			Start:      e.Event.Start,
			AllDay:     e.Event.AllDay,
			YPixel:     e.YPixel,
			StackIndex: e.StackIndex,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type nowResponse struct {
	Now          time.Time `json:"now"`
	CurrentTimeY float64   `json:"current_time_y"`
	TrackHeight  float64   `json:"track_height"`
	RefreshedAt  time.Time `json:"refreshed_at"`
}

func (s *Server) handleNow(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Snapshot()
	writeJSON(w, http.StatusOK, nowResponse{
		Now:          s.state.Now(),
		CurrentTimeY: snap.CurrentTimeY,
		TrackHeight:  s.state.Timeline().TrackHeight,
		RefreshedAt:  snap.RefreshedAt,
	})
}

type calendarsResponse struct {
	Available []string `json:"available"`
	Selected  []string `json:"selected"`
}

func (s *Server) calendarsResponse() calendarsResponse {
	seen := make(map[string]bool)
	var available []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			available = append(available, name)
		}
	}
	for _, c := range s.calendars {
		add(c)
	}
	for _, ev := range s.state.Snapshot().Events {
		add(ev.CalendarName)
	}
	selected := s.state.Selection().All()
	for _, c := range selected {
		add(c)
	}
	slices.Sort(available)
	if available == nil {
		available = []string{}
	}
	return calendarsResponse{Available: available, Selected: selected}
}

func (s *Server) handleCalendars(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.calendarsResponse())
}

type toggleRequest struct {
	Name string `json:"name"`
}

// handleToggle flips one calendar in the selection.
//
// POST /api/calendars/toggle {"name": "Work"}
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"name\": \"<calendar>\"}")
		return
	}
	if _, err := s.state.Selection().Toggle(req.Name); err != nil {
		// The in-memory selection already changed; only persistence failed.
		appLog.Error("api toggle: save failed", err, "calendar", req.Name)
		writeError(w, http.StatusInternalServerError, "selection changed but could not be saved")
		return
	}
	writeJSON(w, http.StatusOK, s.calendarsResponse())
}

func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	prefs := settings.Default()
	if s.prefs != nil {
		prefs = s.prefs.Get()
	}
	prefs.SelectedCalendars = s.state.Selection().All()
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.state.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	snap := s.state.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"events":       len(snap.Events),
		"refreshed_at": snap.RefreshedAt,
	})
}

// parseDate reads a YYYY-MM-DD query value in the state's location. Empty
// means "today", reported as the zero time.
func (s *Server) parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.DateOnly, v, s.state.Location())
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
