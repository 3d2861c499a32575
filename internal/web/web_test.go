package web

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"openeink/internal/app"
	"openeink/internal/battery"
	"openeink/internal/buttons"
	"openeink/internal/config"
	"openeink/internal/epd"
)

type fakeController struct {
	snap app.Snapshot
	cmds []app.Command
	full bool
}

func (f *fakeController) Submit(cmd app.Command) error {
	if f.full {
		return app.ErrInboxFull
	}
	f.cmds = append(f.cmds, cmd)
	return nil
}

func (f *fakeController) Snapshot() app.Snapshot { return f.snap }

func newTestServer(cfg *config.Config) (*Server, *fakeController) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ctl := &fakeController{}
	return NewServer(cfg, ctl, 3), ctl
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("GET /health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestState(t *testing.T) {
	s, ctl := newTestServer(nil)
	ctl.snap = app.Snapshot{
		Screen:    "main_menu",
		Cursor:    1,
		Status:    "Ready",
		Refreshes: 7,
		Battery:   &battery.Status{Percent: 80, VoltageMv: 3900},
		UpdatedAt: time.Unix(1700000000, 0).UTC(),
	}

	rec := do(t, s.Handler(), http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"screen":          "main_menu",
		"cursor":          float64(1),
		"dirty":           false,
		"status":          "Ready",
		"refreshes":       float64(7),
		"battery_percent": float64(80),
		"battery_mv":      float64(3900),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestPreview(t *testing.T) {
	s, ctl := newTestServer(nil)

	rec := do(t, s.Handler(), http.MethodGet, "/preview.png", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("preview before first frame = %d, want 503", rec.Code)
	}

	fb := epd.NewFramebuffer()
	_ = fb.SetPixel(0, 0, epd.Dark)
	ctl.snap = app.Snapshot{Refreshes: 1, Frame: fb.Snapshot()}

	tests := []struct {
		query    string
		wantCode int
		wantW    int
	}{
		{"", http.StatusOK, epd.Width},
		{"?scale=3", http.StatusOK, epd.Width * 3},
		{"?scale=3", http.StatusOK, epd.Width * 3},
		{"?scale=0", http.StatusBadRequest, 0},
		{"?scale=9", http.StatusBadRequest, 0},
		{"?scale=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		rec := do(t, s.Handler(), http.MethodGet, "/preview.png"+tt.query, "")
		if rec.Code != tt.wantCode {
			t.Errorf("GET /preview.png%s = %d, want %d", tt.query, rec.Code, tt.wantCode)
			continue
		}
		if tt.wantCode != http.StatusOK {
			continue
		}
		img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if img.Bounds().Dx() != tt.wantW {
			t.Errorf("%s: width = %d, want %d", tt.query, img.Bounds().Dx(), tt.wantW)
		}
	}
	if len(s.previewCache) != 2 {
		t.Errorf("preview cache entries = %d, want 2", len(s.previewCache))
	}

	ctl.snap.Refreshes = 2
	do(t, s.Handler(), http.MethodGet, "/preview.png", "")
	if len(s.previewCache) != 1 {
		t.Errorf("cache not reset on new frame: %d entries", len(s.previewCache))
	}
}

func TestButton(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		full     bool
		wantCode int
		want     *buttons.Event
	}{
		{"press", `{"button":2,"kind":"press"}`, false, http.StatusAccepted, &buttons.Event{Button: 2, Kind: buttons.Press}},
		{"default kind", `{"button":1}`, false, http.StatusAccepted, &buttons.Event{Button: 1, Kind: buttons.Press}},
		{"long press", `{"button":3,"kind":"long_press"}`, false, http.StatusAccepted, &buttons.Event{Button: 3, Kind: buttons.LongPress}},
		{"button zero", `{"button":0}`, false, http.StatusBadRequest, nil},
		{"button too high", `{"button":4}`, false, http.StatusBadRequest, nil},
		{"bad kind", `{"button":1,"kind":"double"}`, false, http.StatusBadRequest, nil},
		{"bad json", `{"button":`, false, http.StatusBadRequest, nil},
		{"unknown field", `{"button":1,"x":1}`, false, http.StatusBadRequest, nil},
		{"inbox full", `{"button":1}`, true, http.StatusServiceUnavailable, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ctl := newTestServer(nil)
			ctl.full = tt.full
			rec := do(t, s.Handler(), http.MethodPost, "/api/button", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.want == nil {
				if len(ctl.cmds) != 0 {
					t.Errorf("commands queued: %v", ctl.cmds)
				}
				return
			}
			if len(ctl.cmds) != 1 || ctl.cmds[0].Kind != app.CmdButton || ctl.cmds[0].Event != *tt.want {
				t.Errorf("commands = %+v, want %v", ctl.cmds, *tt.want)
			}
		})
	}
}

func TestStatusAndRefresh(t *testing.T) {
	s, ctl := newTestServer(nil)
	if rec := do(t, s.Handler(), http.MethodPost, "/api/status", `{"text":"hi"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("POST /api/status = %d", rec.Code)
	}
	if rec := do(t, s.Handler(), http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("POST /api/refresh = %d", rec.Code)
	}
	if len(ctl.cmds) != 2 || ctl.cmds[0].Kind != app.CmdStatus || ctl.cmds[0].Text != "hi" || ctl.cmds[1].Kind != app.CmdFullRefresh {
		t.Errorf("commands = %+v", ctl.cmds)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(nil)
	if rec := do(t, s.Handler(), http.MethodGet, "/api/button", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/button = %d, want 405", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	s, _ := newTestServer(cfg)
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("/health with auth enabled = %d, want 200", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("unauthenticated /api/state = %d", rec.Code)
	}

	tests := []struct {
		user, pass string
		want       int
	}{
		{"admin", "secret", http.StatusOK},
		{"admin", "wrong", http.StatusUnauthorized},
		{"other", "secret", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
		req.SetBasicAuth(tt.user, tt.pass)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s:%s = %d, want %d", tt.user, tt.pass, rec.Code, tt.want)
		}
	}
}
