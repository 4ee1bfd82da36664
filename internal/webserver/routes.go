package webserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/psidex/wsmonitor/internal/chart"
	"github.com/psidex/wsmonitor/internal/lib"
	"github.com/psidex/wsmonitor/internal/monitor"
	"github.com/psidex/wsmonitor/internal/source"
	"github.com/psidex/wsmonitor/internal/testctl"
)

const maxIngestBody = 1 << 20

// Backend is the test administration API. *testctl.Client satisfies it.
type Backend interface {
	Panel(ctx context.Context, courseID, lessonID int) (testctl.Panel, error)
	Create(ctx context.Context, action string, req testctl.CreateRequest) error
	Start(ctx context.Context, startURL string, duration int) error
	Modify(ctx context.Context, startURL string, req testctl.ModifyRequest) error
	Delete(ctx context.Context, deleteURL string) error
	Get(ctx context.Context, id int) (testctl.TestConfig, error)
}

type Deps struct {
	Logger     *slog.Logger
	Hub        *Hub
	Network    *chart.Network
	Controller *monitor.Controller
	Applier    *source.Applier
	// Backend may be nil, in which case the admin routes are not registered.
	Backend Backend
	APIKey  string
	// StaticDir is served at / when set.
	StaticDir   string
	IngestRate  float64
	IngestBurst int
	// BackendTimeout bounds each proxied admin request, 0 means no limit.
	BackendTimeout time.Duration
}

type server struct {
	Deps
	limiter *rate.Limiter
}

// Routes builds the HTTP handler for the viewer websocket, snapshots, metrics, manual
// ingest and the admin test routes.
func Routes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = lib.QuietLogger()
	}
	s := &server{
		Deps:    d,
		limiter: rate.NewLimiter(rate.Limit(d.IngestRate), d.IngestBurst),
	}

	mux := http.NewServeMux()
	if d.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(d.StaticDir)))
	}
	mux.HandleFunc("GET /ws", s.session)
	mux.HandleFunc("GET /snapshot", s.snapshot)
	mux.HandleFunc("GET /graph.json", s.graphJSON)
	mux.HandleFunc("GET /api/state", s.state)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/events", s.ingest)

	if d.Backend != nil {
		mux.HandleFunc("GET /admin/lessons/{course}/{lesson}/panel", s.admin(s.panel))
		mux.HandleFunc("POST /admin/lessons/{course}/{lesson}/test", s.admin(s.createTest))
		mux.HandleFunc("POST /admin/lessons/{course}/{lesson}/test/start", s.admin(s.startTest))
		mux.HandleFunc("PUT /admin/lessons/{course}/{lesson}/test", s.admin(s.modifyTest))
		mux.HandleFunc("DELETE /admin/lessons/{course}/{lesson}/test", s.admin(s.deleteTest))
		mux.HandleFunc("GET /admin/tests/{id}", s.admin(s.getTest))
	}
	return mux
}

func (s *server) session(w http.ResponseWriter, r *http.Request) {
	s.Hub.Session(s.Network, w, r)
}

func (s *server) snapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.Network.Render(w, "wsmonitor: "+s.Controller.Root()); err != nil {
		s.Logger.Error("Snapshot render failed", "err", err)
	}
}

func (s *server) graphJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Network.Snapshot())
}

func (s *server) state(w http.ResponseWriter, r *http.Request) {
	stats := s.Controller.Stats()
	writeJSON(w, http.StatusOK, stateBody{
		Root:     stats.Root,
		Known:    stats.Known,
		Pending:  stats.Pending,
		Draining: stats.Draining,
		Fading:   stats.Fading,
		Viewers:  s.Hub.Count(),
	})
}

// ingest accepts one monitor event or a JSON array of them.
func (s *server) ingest(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many events")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var events []source.MonitorEvent
	if err := json.Unmarshal(body, &events); err != nil {
		ev, err := source.DecodeEvent(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		events = []source.MonitorEvent{ev}
	}

	for _, ev := range events {
		s.Applier.ApplyContext(r.Context(), "http", ev)
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(events)})
}

type adminHandler func(w http.ResponseWriter, r *http.Request) (title string, err error)

// admin checks the API key, bounds the backend call and turns its outcome into a
// response plus a toast for every viewer.
func (s *server) admin(h adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-KEY")
		if s.APIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.APIKey)) != 1 {
			writeError(w, http.StatusForbidden, "X-API-KEY is invalid.")
			return
		}

		if s.BackendTimeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), s.BackendTimeout)
			defer cancel()
			r = r.WithContext(ctx)
		}

		title, err := h(w, r)
		if err == nil {
			if title != "" {
				s.Hub.Toast(title, IconSuccess)
			}
			return
		}

		status, detail := errorStatus(err)
		s.Logger.Warn("Admin action failed", "path", r.URL.Path, "status", status, "err", err)
		s.Hub.Toast(detail, IconError)
		writeError(w, status, detail)
	}
}

// errNoActiveTest is returned when an action needs the lesson's test but there is none.
var errNoActiveTest = errors.New("lesson has no test config")

type badRequestError struct{ error }

func errorStatus(err error) (int, string) {
	var apiErr *testctl.APIError
	var badReq badRequestError
	switch {
	case errors.As(err, &apiErr):
		detail := apiErr.Detail
		if detail == "" {
			detail = http.StatusText(apiErr.Status)
		}
		return apiErr.Status, detail
	case errors.Is(err, testctl.ErrDurationRequired), errors.As(err, &badReq):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, errNoActiveTest):
		return http.StatusConflict, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "backend timed out"
	default:
		return http.StatusBadGateway, err.Error()
	}
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, badRequestError{fmt.Errorf("%s must be an integer", name)}
	}
	return v, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequestError{fmt.Errorf("invalid body: %w", err)}
	}
	return nil
}

func lessonIDs(r *http.Request) (courseID, lessonID int, err error) {
	if courseID, err = pathInt(r, "course"); err != nil {
		return 0, 0, err
	}
	if lessonID, err = pathInt(r, "lesson"); err != nil {
		return 0, 0, err
	}
	return courseID, lessonID, nil
}

// lessonPanel fetches the control panel of the lesson named in the path.
func (s *server) lessonPanel(r *http.Request) (testctl.Panel, error) {
	courseID, lessonID, err := lessonIDs(r)
	if err != nil {
		return testctl.Panel{}, err
	}
	return s.Backend.Panel(r.Context(), courseID, lessonID)
}

func (s *server) activePanel(r *http.Request) (testctl.Panel, error) {
	panel, err := s.lessonPanel(r)
	if err != nil {
		return panel, err
	}
	if !panel.Active {
		return panel, errNoActiveTest
	}
	return panel, nil
}

func (s *server) panel(w http.ResponseWriter, r *http.Request) (string, error) {
	panel, err := s.lessonPanel(r)
	if err != nil {
		return "", err
	}

	resp := map[string]any{
		"create_action": panel.CreateAction,
		"create_method": panel.CreateMethod,
		"active":        panel.Active,
		"start_url":     panel.StartURL,
		"delete_url":    panel.DeleteURL,
	}
	if !panel.EndAt.IsZero() {
		remaining := testctl.RemainingSeconds(panel.EndAt, time.Now())
		resp["end_at"] = panel.EndAt
		resp["remaining"] = remaining
		resp["remaining_text"] = testctl.IntComma(remaining)
	}
	writeJSON(w, http.StatusOK, resp)
	return "", nil
}

func (s *server) createTest(w http.ResponseWriter, r *http.Request) (string, error) {
	var req testctl.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		return "", err
	}
	courseID, lessonID, err := lessonIDs(r)
	if err != nil {
		return "", err
	}
	panel, err := s.Backend.Panel(r.Context(), courseID, lessonID)
	if err != nil {
		return "", err
	}
	// The path names the lesson.
	req.CourseID, req.LessonID = courseID, lessonID

	if err := s.Backend.Create(r.Context(), panel.CreateAction, req); err != nil {
		return "", err
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
	return "Test created", nil
}

func (s *server) startTest(w http.ResponseWriter, r *http.Request) (string, error) {
	var body durationBody
	if err := decodeBody(r, &body); err != nil {
		return "", err
	}
	if body.Duration <= 0 {
		return "", testctl.ErrDurationRequired
	}
	panel, err := s.activePanel(r)
	if err != nil {
		return "", err
	}
	if err := s.Backend.Start(r.Context(), panel.StartURL, body.Duration); err != nil {
		return "", err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	return "Test started", nil
}

func (s *server) modifyTest(w http.ResponseWriter, r *http.Request) (string, error) {
	var req testctl.ModifyRequest
	if err := decodeBody(r, &req); err != nil {
		return "", err
	}
	panel, err := s.activePanel(r)
	if err != nil {
		return "", err
	}
	if err := s.Backend.Modify(r.Context(), panel.StartURL, req); err != nil {
		return "", err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	return "Test modified", nil
}

func (s *server) deleteTest(w http.ResponseWriter, r *http.Request) (string, error) {
	panel, err := s.activePanel(r)
	if err != nil {
		return "", err
	}
	if err := s.Backend.Delete(r.Context(), panel.DeleteURL); err != nil {
		return "", err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	return "Test deleted", nil
}

func (s *server) getTest(w http.ResponseWriter, r *http.Request) (string, error) {
	id, err := pathInt(r, "id")
	if err != nil {
		return "", err
	}
	cfg, err := s.Backend.Get(r.Context(), id)
	if err != nil {
		return "", err
	}
	writeJSON(w, http.StatusOK, cfg)
	return "", nil
}
