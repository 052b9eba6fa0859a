// Package dashboard serves the loss curves of a running training job over HTTP.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.dedis.ch/onet/v3/log"

	"github.com/born-ml/colorize/internal/metrics"
)

// Server exposes a metrics.Logger:
//
//	GET /healthz             liveness probe
//	GET /api/loss            {"train": [...], "eval": [...]}
//	GET /api/loss/{series}   one series, train or eval
//	GET /api/summary         statistics of both series
//	GET /loss.png            the current loss plot
type Server struct {
	name   string
	logger *metrics.Logger
	router *mux.Router
}

// New returns a server for the run called name.
func New(name string, logger *metrics.Logger) *Server {
	s := &Server{name: name, logger: logger, router: mux.NewRouter()}
	s.router.Handle("/", http.RedirectHandler("/loss.png", http.StatusFound))
	s.router.HandleFunc("/healthz", s.health()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/loss", s.loss()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/loss/{series:(?:train|eval)}", s.series()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/summary", s.summary()).Methods(http.MethodGet)
	s.router.HandleFunc("/loss.png", s.plot()).Methods(http.MethodGet)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Lvlf1("dashboard for %s at http://%s", s.name, addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "name": s.name})
	}
}

func (s *Server) loss() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string][]metrics.Point{
			"train": finite(s.logger.TrainLoss()),
			"eval":  finite(s.logger.EvalLoss()),
		})
	}
}

func (s *Server) series() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		points := s.logger.TrainLoss()
		if mux.Vars(r)["series"] == "eval" {
			points = s.logger.EvalLoss()
		}
		writeJSON(w, finite(points))
	}
}

func (s *Server) summary() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]metrics.Summary, 2)
		if sum, err := metrics.Summarize(finite(s.logger.TrainLoss())); err == nil {
			out["train"] = sum
		}
		if sum, err := metrics.Summarize(finite(s.logger.EvalLoss())); err == nil {
			out["eval"] = sum
		}
		writeJSON(w, out)
	}
}

func (s *Server) plot() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		err := s.logger.WritePNG(w, s.name, metrics.PlotWidth, metrics.PlotHeight)
		if errors.Is(err, metrics.ErrEmpty) {
			w.Header().Del("Content-Type")
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("dashboard plot:", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("dashboard encode:", err)
	}
}

// finite drops NaN and infinite losses, which JSON cannot represent.
func finite(points []metrics.Point) []metrics.Point {
	out := make([]metrics.Point, 0, len(points))
	for _, p := range points {
		if !math.IsNaN(p.Loss) && !math.IsInf(p.Loss, 0) {
			out = append(out, p)
		}
	}
	return out
}
