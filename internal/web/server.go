// Package web provides the HTTP status page and command API for the
// coop-door daemon.
package web

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/sweeney/coop-door/internal/door"
	"github.com/sweeney/coop-door/internal/logic"
	"github.com/sweeney/coop-door/internal/status"
)

// Controller is the part of the door controller the API drives.
type Controller interface {
	Do(cmd door.Command) error
	State() logic.DoorState
}

// Server serves the status page and command API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctrl       Controller
}

// commandRoutes maps API paths to controller commands.
var commandRoutes = map[string]door.Command{
	"/api/door/open":  door.CommandOpen,
	"/api/door/close": door.CommandClose,
	"/api/door/stop":  door.CommandStop,
	"/api/light/on":   door.CommandLightOn,
	"/api/light/off":  door.CommandLightOff,
	"/api/light/auto": door.CommandLightAuto,
}

// New creates a Server that reads state from tracker and sends commands to
// ctrl. A nil ctrl answers every command with 503.
func New(addr string, tracker *status.Tracker, ctrl Controller) *Server {
	s := &Server{tracker: tracker, ctrl: ctrl}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	for path, cmd := range commandRoutes {
		mux.HandleFunc(path, s.commandHandler(cmd))
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) commandHandler(cmd door.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeCommand(w, http.StatusMethodNotAllowed, commandResult(cmd, "", errors.New("method not allowed")))
			return
		}
		if s.ctrl == nil {
			writeCommand(w, http.StatusServiceUnavailable, commandResult(cmd, "", door.ErrNotStarted))
			return
		}

		err := s.ctrl.Do(cmd)
		code := statusCode(err)
		if err != nil {
			log.Printf("web: command %s: %v", cmd, err)
		} else {
			log.Printf("web: command %s accepted", cmd)
		}
		// Forms on the status page expect to land back on it.
		if err == nil && strings.Contains(r.Header.Get("Accept"), "text/html") {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		writeCommand(w, code, commandResult(cmd, s.ctrl.State(), err))
	}
}

// statusCode maps controller errors onto HTTP status codes.
func statusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, door.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, door.ErrInvalidCommand):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
