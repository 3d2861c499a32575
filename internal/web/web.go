// Package web is the HTTP debug surface. Handlers never touch the display:
// they read the loop's published snapshot or submit commands to it.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"openeink/internal/app"
	"openeink/internal/buttons"
	"openeink/internal/config"
	"openeink/internal/convert"
	appLog "openeink/internal/log"
)

// Controller is the part of the main loop the server needs.
type Controller interface {
	Submit(cmd app.Command) error
	Snapshot() app.Snapshot
}

const maxBodyBytes = 4 << 10

// Server serves the debug API.
type Server struct {
	cfg     *config.Config
	ctl     Controller
	buttons int
	mux     *http.ServeMux

	// Encoded previews of the last frame, keyed by scale. Dropped whenever
	// the refresh count moves.
	previewMu        sync.Mutex
	previewRefreshes uint32
	previewCache     map[int][]byte
}

// NewServer constructs a Server. numButtons bounds the ids accepted by
// POST /api/button.
func NewServer(cfg *config.Config, ctl Controller, numButtons int) *Server {
	s := &Server{
		cfg:     cfg,
		ctl:     ctl,
		buttons: numButtons,
		mux:     http.NewServeMux(),
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
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
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
			w.Header().Set("WWW-Authenticate", `Basic realm="OpenEInk", charset="UTF-8"`)
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

// Serve listens on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
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
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("POST /api/button", s.handleButton)
	s.mux.HandleFunc("POST /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// stateResponse is the JSON response shape for /api/state.
type stateResponse struct {
	Screen         string    `json:"screen"`
	Cursor         int       `json:"cursor"`
	Dirty          bool      `json:"dirty"`
	Status         string    `json:"status"`
	Refreshes      uint32    `json:"refreshes"`
	BatteryPercent *int      `json:"battery_percent,omitempty"`
	BatteryMv      *int      `json:"battery_mv,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := s.ctl.Snapshot()
	resp := stateResponse{
		Screen:    snap.Screen,
		Cursor:    snap.Cursor,
		Dirty:     snap.Dirty,
		Status:    snap.Status,
		Refreshes: snap.Refreshes,
		UpdatedAt: snap.UpdatedAt,
	}
	if snap.Battery != nil {
		pct, mv := snap.Battery.Percent, snap.Battery.VoltageMv
		resp.BatteryPercent = &pct
		resp.BatteryMv = &mv
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePreview renders the last presented frame as PNG.
//
// GET /preview.png?scale=2
//   - scale: integer magnification, 1..8 (default 1)
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	scale := 1
	if v := r.URL.Query().Get("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < convert.MinScale || n > convert.MaxScale {
			writeError(w, http.StatusBadRequest, "scale must be an integer in 1..8")
			return
		}
		scale = n
	}

	snap := s.ctl.Snapshot()
	if len(snap.Frame) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no frame presented yet")
		return
	}

	data, err := s.preview(snap, scale)
	if err != nil {
		appLog.Error("preview render failed", err, "scale", scale)
		writeError(w, http.StatusInternalServerError, "failed to render preview")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (s *Server) preview(snap app.Snapshot, scale int) ([]byte, error) {
	s.previewMu.Lock()
	defer s.previewMu.Unlock()

	if s.previewCache == nil || s.previewRefreshes != snap.Refreshes {
		s.previewCache = map[int][]byte{}
		s.previewRefreshes = snap.Refreshes
	}
	if data, ok := s.previewCache[scale]; ok {
		return data, nil
	}
	data, err := convert.PNG(snap.Frame, scale)
	if err != nil {
		return nil, err
	}
	s.previewCache[scale] = data
	return data, nil
}

type buttonRequest struct {
	Button int    `json:"button"`
	Kind   string `json:"kind"`
}

func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	var req buttonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Button < 1 || req.Button > s.buttons {
		writeError(w, http.StatusBadRequest, "button out of range")
		return
	}
	kind, err := buttons.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.submit(w, app.Command{
		Kind:  app.CmdButton,
		Event: buttons.Event{Button: req.Button, Kind: kind},
	})
}

type statusRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.submit(w, app.Command{Kind: app.CmdStatus, Text: req.Text})
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.submit(w, app.Command{Kind: app.CmdFullRefresh})
}

func (s *Server) submit(w http.ResponseWriter, cmd app.Command) {
	if err := s.ctl.Submit(cmd); err != nil {
		if errors.Is(err, app.ErrInboxFull) {
			writeError(w, http.StatusServiceUnavailable, "busy, retry later")
			return
		}
		appLog.Error("submit failed", err, "command", cmd.Kind)
		writeError(w, http.StatusInternalServerError, "failed to queue command")
		return
	}
	appLog.Debug("api command queued", "command", cmd.Kind)
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// decodeJSON reads a bounded JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
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
