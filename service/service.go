package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redwren/redwrenlib/config"
	"github.com/redwren/redwrenlib/match"
	"github.com/redwren/redwrenlib/model"
	"github.com/redwren/redwrenlib/pkg/timestamp"
	"github.com/redwren/redwrenlib/pkg/worker"
	"github.com/redwren/redwrenlib/store"
)

// MatchRequest is the wire format for one evaluation request. Timestamps
// accept any shape the timestamp package can parse (float seconds, Unix
// milliseconds, RFC 3339 strings); Rebase shifts them to start at zero
// before scoring.
type MatchRequest struct {
	RequestID  string               `json:"request_id,omitempty"`
	Timestamps []any                `json:"timestamps"`
	Readings   map[string][]float64 `json:"readings"`
	Rebase     bool                 `json:"rebase,omitempty"`
}

// MatchResponse carries the decision and the per-sensor breakdown back to
// the requester. Error is set instead of the results on a failed request.
type MatchResponse struct {
	RequestID string                       `json:"request_id"`
	Match     bool                         `json:"match"`
	Results   map[string]model.MatchResult `json:"results,omitempty"`
	Error     string                       `json:"error,omitempty"`
}

// Service answers gesture match requests over NATS request/reply. Requests
// arrive on a queue-subscribed subject, are evaluated against the models
// loaded from the service's store, and the decision is published to the
// reply subject. Heavy lifting runs on a worker pool so the subscription
// callback stays fast.
type Service struct {
	cfg       config.ServiceConfig
	store     *store.Store
	evaluator *match.Evaluator
	logger    *slog.Logger

	nc       *nats.Conn
	ownsConn bool
	sub      *nats.Subscription
	pool     *worker.Pool[*nats.Msg]

	registry *prometheus.Registry
	metrics  *http.Server

	mu      sync.Mutex
	started bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithConn injects an existing NATS connection. The service will not close
// it on Stop.
func WithConn(nc *nats.Conn) Option {
	return func(s *Service) {
		s.nc = nc
		s.ownsConn = false
	}
}

// WithEvaluator replaces the default evaluator.
func WithEvaluator(e *match.Evaluator) Option {
	return func(s *Service) { s.evaluator = e }
}

// New creates a match service bound to st. The store is loaded from disk
// on Start.
func New(cfg config.ServiceConfig, st *store.Store, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		store:    st,
		logger:   slog.Default(),
		ownsConn: true,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.evaluator == nil {
		s.evaluator = match.NewEvaluator(
			match.WithLogger(s.logger),
			match.WithRegisterer(s.registry),
		)
	}
	s.pool = worker.NewPool(s.process,
		worker.WithWorkers[*nats.Msg](cfg.Workers),
		worker.WithRegisterer[*nats.Msg](s.registry, "gesture_service"),
	)
	return s
}

// Start loads the models, connects to NATS and begins serving requests.
// Starting an already-started service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.logger.Debug("match service already started")
		return nil
	}

	if err := s.store.Read(); err != nil {
		return fmt.Errorf("load gesture file %s: %w", s.store.Path(), err)
	}
	s.logger.Info("loaded gesture models",
		"path", s.store.Path(), "sensors", len(s.store.Keys()), "version", s.store.Version())

	if s.nc == nil {
		nc, err := nats.Connect(s.cfg.URL,
			nats.Name("gesture-match-service"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return fmt.Errorf("connect to NATS at %s: %w", s.cfg.URL, err)
		}
		s.nc = nc
		s.ownsConn = true
	}

	if err := s.pool.Start(ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	sub, err := s.nc.QueueSubscribe(s.cfg.Subject, s.cfg.Queue, func(msg *nats.Msg) {
		if err := s.pool.Submit(msg); err != nil {
			s.logger.Warn("dropping match request", "error", err)
			s.reply(msg, MatchResponse{Error: "service overloaded, try again"})
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Subject, err)
	}
	s.sub = sub

	if s.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
		s.metrics = &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := s.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("metrics listener failed", "addr", s.cfg.MetricsAddr, "error", err)
			}
		}()
	}

	s.started = true
	s.logger.Info("match service started", "subject", s.cfg.Subject, "queue", s.cfg.Queue)
	return nil
}

// Stop drains the subscription, waits for in-flight evaluations and
// releases the connection if the service owns it.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.logger.Warn("draining subscription failed", "error", err)
		}
	}
	if err := s.pool.Stop(timeout); err != nil {
		return fmt.Errorf("stop worker pool: %w", err)
	}
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.metrics.Shutdown(ctx); err != nil {
			s.logger.Warn("metrics listener shutdown failed", "error", err)
		}
	}
	if s.ownsConn && s.nc != nil {
		s.nc.Close()
	}

	s.started = false
	s.logger.Info("match service stopped")
	return nil
}

// IsStarted reports whether the service is currently serving requests.
func (s *Service) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stats exposes the worker pool counters.
func (s *Service) Stats() worker.Stats {
	return s.pool.Stats()
}

// process is the pool processor: decode, evaluate, reply.
func (s *Service) process(ctx context.Context, msg *nats.Msg) error {
	var req MatchRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.reply(msg, MatchResponse{Error: fmt.Sprintf("malformed request: %v", err)})
		return err
	}

	resp := s.evaluate(ctx, req)
	s.reply(msg, resp)
	if resp.Error != "" {
		return fmt.Errorf("request %s: %s", resp.RequestID, resp.Error)
	}
	return nil
}

// evaluate runs one request against the loaded models. It never returns an
// error: failures are folded into the response so the requester always
// hears back.
func (s *Service) evaluate(ctx context.Context, req MatchRequest) MatchResponse {
	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}

	timestamps, err := timestamp.ParseSeries(req.Timestamps)
	if err != nil {
		s.logger.Warn("rejecting match request", "request_id", id, "error", err)
		return MatchResponse{RequestID: id, Error: err.Error()}
	}
	if req.Rebase {
		timestamps = timestamp.Rebase(timestamps)
	}

	ok, results, err := s.evaluator.Evaluate(ctx, s.store, timestamps, req.Readings)
	if err != nil {
		s.logger.Warn("match evaluation failed", "request_id", id, "error", err)
		return MatchResponse{RequestID: id, Error: err.Error()}
	}

	s.logger.Debug("evaluated match request",
		"request_id", id, "sensors", len(req.Readings), "match", ok)
	return MatchResponse{RequestID: id, Match: ok, Results: results}
}

func (s *Service) reply(msg *nats.Msg, resp MatchResponse) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encoding response failed", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("publishing response failed", "error", err)
	}
}
