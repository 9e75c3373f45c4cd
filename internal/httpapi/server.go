// internal/httpapi/server.go
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/tamzrod/smartbattery-poller/internal/poller"
)

// Battery is the poller surface the HTTP API drives.
type Battery interface {
	Latest() (poller.Update, bool)

	BatteryInserted(ctx context.Context) error
	BatteryRemoved(ctx context.Context) error
	SetInflowDisabled(ctx context.Context, disabled bool) error
	SetChargeInhibited(ctx context.Context, inhibited bool) error
	SetUserClientStalled(ctx context.Context, stalled bool) error
	SetPollingInterval(ctx context.Context, d time.Duration) (bool, error)
}

// Lifecycle event names accepted on POST /batteries/{id}/events/{event}.
const (
	EventInsert          = "insert"
	EventRemove          = "remove"
	EventInflowDisable   = "inflow-disable"
	EventChargeInhibit   = "charge-inhibit"
	EventStall           = "stall"
	EventPollingInterval = "polling-interval"
)

// DefaultEventsPerMinute limits lifecycle events per client IP.
const DefaultEventsPerMinute = 60

// Config wires the API.
type Config struct {
	Batteries map[string]Battery
	Metrics   http.Handler // optional
	Logger    zerolog.Logger

	// EventsPerMinute caps lifecycle POSTs per client IP.
	// Zero selects DefaultEventsPerMinute.
	EventsPerMinute int
}

// Server serves health, metrics, snapshots and lifecycle events.
type Server struct {
	batteries map[string]Battery
	metrics   http.Handler
	log       zerolog.Logger
	perMinute int
}

// New builds the API.
func New(cfg Config) *Server {
	s := &Server{
		batteries: cfg.Batteries,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
		perMinute: cfg.EventsPerMinute,
	}
	if s.perMinute <= 0 {
		s.perMinute = DefaultEventsPerMinute
	}
	return s
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/batteries", func(r chi.Router) {
		r.Get("/", s.listBatteries)
		r.Get("/{id}", s.getBattery)
		r.With(s.eventLimit()).Post("/{id}/events/{event}", s.postEvent)
	})
	return r
}

// ---- HANDLERS ----

func (s *Server) listBatteries(w http.ResponseWriter, _ *http.Request) {
	ids := make([]string, 0, len(s.batteries))
	for id := range s.batteries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, map[string][]string{"batteries": ids})
}

func (s *Server) getBattery(w http.ResponseWriter, r *http.Request) {
	b, ok := s.batteries[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown battery")
		return
	}
	u, ok := b.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, ok := s.batteries[id]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown battery")
		return
	}

	event := chi.URLParam(r, "event")
	value := r.URL.Query().Get("value")
	ctx := r.Context()

	var (
		err     error
		applied = true
	)
	switch event {
	case EventInsert:
		err = b.BatteryInserted(ctx)
	case EventRemove:
		err = b.BatteryRemoved(ctx)
	case EventInflowDisable, EventChargeInhibit, EventStall:
		on, perr := strconv.ParseBool(value)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "value must be a boolean")
			return
		}
		switch event {
		case EventInflowDisable:
			err = b.SetInflowDisabled(ctx, on)
		case EventChargeInhibit:
			err = b.SetChargeInhibited(ctx, on)
		default:
			err = b.SetUserClientStalled(ctx, on)
		}
	case EventPollingInterval:
		secs, perr := strconv.Atoi(value)
		if perr != nil || secs <= 0 {
			writeError(w, http.StatusBadRequest, "value must be a positive number of seconds")
			return
		}
		applied, err = b.SetPollingInterval(ctx, time.Duration(secs)*time.Second)
	default:
		writeError(w, http.StatusNotFound, "unknown event")
		return
	}

	if err != nil {
		status := http.StatusGatewayTimeout
		if errors.Is(err, poller.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}

	s.log.Info().
		Str("battery", id).
		Str("event", event).
		Str("value", value).
		Bool("applied", applied).
		Msg("lifecycle event")
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// ---- HELPERS ----

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) eventLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		s.perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "too many lifecycle events")
		}),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
