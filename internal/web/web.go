package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"memocal/internal/config"
	"memocal/internal/editor"
	"memocal/internal/extract"
	"memocal/internal/ics"
	appLog "memocal/internal/log"
	"memocal/internal/model"
	"memocal/internal/suggest"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Server exposes the editing session as a JSON API for the presentation
// layer.
type Server struct {
	cfg     *config.Config
	session *editor.Session
	mux     *http.ServeMux
	loc     *time.Location
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, session *editor.Session) *Server {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}
	s := &Server{
		cfg:     cfg,
		session: session,
		mux:     http.NewServeMux(),
		loc:     loc,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="MemoCal", charset="UTF-8"`)
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

// StartServer serves the API on cfg.Listen until ctx is canceled, then
// shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, session *editor.Session) error {
	s := NewServer(cfg, session)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("PUT /api/text", s.handleSetText)
	s.mux.HandleFunc("GET /api/suggestions", s.handleSuggestions)
	s.mux.HandleFunc("POST /api/extract", s.handleExtract)
	s.mux.HandleFunc("POST /api/mentions/accept", s.handleAccept)
	s.mux.HandleFunc("POST /api/groups/resolve", s.handleResolve)
	s.mux.HandleFunc("POST /api/dismiss", s.handleDismiss)

	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/events", s.handleSaveForm)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleRemove)
	s.mux.HandleFunc("GET /api/events/{id}/ics", s.handleCalendarFile)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.mux.HandleFunc("POST /api/date-suggestions", s.handleDateSuggestions)
	s.mux.HandleFunc("GET /api/notices", s.handleNotices)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSetText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.session.SetText(req.Text)
	writeJSON(w, http.StatusAccepted, map[string]bool{"pending": true})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Last())
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.session.Extract(req.Text)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, editor.Snapshot{Result: res})
}

type acceptRequest struct {
	Identity  string   `json:"identity"`
	Reminders []string `json:"reminders"`
	Target    string   `json:"target"`
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reminders, target, ok := s.parseChoices(w, req.Reminders, req.Target)
	if !ok {
		return
	}
	ev, err := s.session.AcceptMention(req.Identity, reminders, target)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

type resolveRequest struct {
	GroupID   string   `json:"group_id"`
	Field     string   `json:"field"`
	Reminders []string `json:"reminders"`
	Target    string   `json:"target"`
}

type resolveResponse struct {
	Events  []model.Event `json:"events"`
	Warning string        `json:"warning,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	field, err := model.ParseField(req.Field)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reminders, target, ok := s.parseChoices(w, req.Reminders, req.Target)
	if !ok {
		return
	}

	evs, err := s.session.ResolveGroup(req.GroupID, field, reminders, target)
	if err != nil && len(evs) == 0 {
		writeFailure(w, err)
		return
	}
	resp := resolveResponse{Events: evs}
	if err != nil {
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

type dismissRequest struct {
	Identity string `json:"identity"`
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	var req dismissRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.session.Dismiss(req.Identity); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents returns the booked events ordered by start.
//
// GET /api/events?days=7&backfill=1
//   - days:     limit to events starting within this many days (default: all)
//   - backfill: include this many past days when days is set (default 0)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 0)
	backfill := parseIntDefault(q.Get("backfill"), 0)
	if backfill < 0 {
		backfill = 0
	}

	evs := s.session.Events()
	if days > 0 {
		now := time.Now().In(s.loc)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
		from := today.AddDate(0, 0, -backfill)
		to := today.AddDate(0, 0, days)
		kept := evs[:0]
		for _, ev := range evs {
			st := ev.Candidate.Start
			if !st.Before(from) && st.Before(to) {
				kept = append(kept, ev)
			}
		}
		evs = kept
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

type formRequest struct {
	EditingID string   `json:"editing_id"`
	DateInput string   `json:"date_input"`
	Content   string   `json:"content"`
	Reminders []string `json:"reminders"`
	Target    string   `json:"target"`
}

func (s *Server) handleSaveForm(w http.ResponseWriter, r *http.Request) {
	var req formRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reminders, target, ok := s.parseChoices(w, req.Reminders, req.Target)
	if !ok {
		return
	}
	ev, err := s.session.SaveForm(editor.Form{
		EditingID: req.EditingID,
		DateInput: req.DateInput,
		Content:   req.Content,
		Reminders: reminders,
		Target:    target,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	status := http.StatusCreated
	if req.EditingID != "" {
		status = http.StatusOK
	}
	writeJSON(w, status, ev)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Remove(r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCalendarFile(w http.ResponseWriter, r *http.Request) {
	body, name, err := s.session.CalendarFile(r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Refresh(r.Context()); err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusBadGateway, "failed to list remote events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.session.Events()})
}

type dateSuggestionRequest struct {
	Input string `json:"input"`
}

func (s *Server) handleDateSuggestions(w http.ResponseWriter, r *http.Request) {
	var req dateSuggestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, suggest.Suggest(s.session, req.Input))
}

func (s *Server) handleNotices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notices": s.session.Notices()})
}

// parseChoices validates the reminder labels and the sync target of a
// request. An empty target leaves the choice to the session default.
func (s *Server) parseChoices(w http.ResponseWriter, labels []string, rawTarget string) ([]model.Reminder, model.SyncTarget, bool) {
	reminders := make([]model.Reminder, 0, len(labels))
	for _, l := range labels {
		rem, err := model.ParseReminder(l)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, "", false
		}
		reminders = append(reminders, rem)
	}
	target, err := model.ParseTarget(rawTarget, "")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, "", false
	}
	return reminders, target, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// statusOf maps session errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, editor.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrEmptyForm),
		errors.Is(err, extract.ErrUnrecognizedDate),
		errors.Is(err, extract.ErrFieldRange),
		errors.Is(err, extract.ErrUnknownField),
		errors.Is(err, ics.ErrEncode):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeFailure(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		appLog.Error("api request failed", err)
	}
	writeError(w, status, err.Error())
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
