// Package app assembles the dispatch service from its components.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/carelink/dispatchd/api/ambulances"
	"github.com/carelink/dispatchd/api/coordinator"
	"github.com/carelink/dispatchd/api/driver"
	"github.com/carelink/dispatchd/api/emergency"
	"github.com/carelink/dispatchd/api/respond"
	"github.com/carelink/dispatchd/config"
	"github.com/carelink/dispatchd/core/analytics"
	"github.com/carelink/dispatchd/core/dispatch"
	"github.com/carelink/dispatchd/core/matcher"
	coremetrics "github.com/carelink/dispatchd/core/metrics"
	"github.com/carelink/dispatchd/core/queue"
	"github.com/carelink/dispatchd/core/registry"
	"github.com/carelink/dispatchd/infra/history"
	"github.com/carelink/dispatchd/infra/logger"
	"github.com/carelink/dispatchd/infra/metrics"
	"github.com/carelink/dispatchd/infra/mqtt"
	"github.com/carelink/dispatchd/internal/eventbus"
	"github.com/carelink/dispatchd/realtime"
)

// Service orchestrates the registry, queue, engine and transports.
type Service struct {
	Engine   *dispatch.Engine
	Registry *registry.Registry
	Queue    *queue.Queue
	Hub      *realtime.Hub

	cfg    *config.Config
	bus    *eventbus.Bus
	bridge *realtime.Bridge
	store  history.Store
	ingest *mqtt.Ingest
	influx *metrics.InfluxSink
	server *http.Server
	log    logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	store, err := newHistoryStore(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}

	var sink coremetrics.Sink
	var influx *metrics.InfluxSink
	if cfg.Metrics.Influx.Enabled {
		s := metrics.NewInfluxSinkWithFallback(cfg.Metrics.Influx.URL,
			cfg.Metrics.Influx.Token, cfg.Metrics.Influx.Org, cfg.Metrics.Influx.Bucket)
		sink = s
		if is, ok := s.(*metrics.InfluxSink); ok {
			influx = is
		}
	}

	bus := eventbus.New()
	fleet := registry.New(logger.New("registry"))
	q := queue.New(logger.New("queue"))
	engine, err := dispatch.New(q, fleet, cfg.Dispatch, bus, store, sink, logger.New("engine"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("dispatch engine: %w", err)
	}
	fleet.SetReferenceChecker(engine)

	hub := realtime.NewHub(logger.New("realtime"))
	bridge := realtime.NewBridge(bus, hub, logger.New("realtime"))

	svc := &Service{
		Engine:   engine,
		Registry: fleet,
		Queue:    q,
		Hub:      hub,
		cfg:      cfg,
		bus:      bus,
		bridge:   bridge,
		store:    store,
		influx:   influx,
		log:      logg,
	}

	if cfg.MQTT.Enabled {
		ingest, err := mqtt.NewIngest(cfg.MQTT, fleet)
		if err != nil {
			// GPS telemetry is an enhancement, dispatching works without it
			logg.Errorf("gps ingest unavailable: %v", err)
		} else {
			svc.ingest = ingest
		}
	}

	svc.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           svc.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return svc, nil
}

func newHistoryStore(cfg config.HistoryConfig) (history.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return history.NewSQLiteStore(cfg.Path)
	case "jsonl_rotating":
		return history.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	default:
		return history.NewJSONLStore(cfg.Path)
	}
}

func (s *Service) routes() http.Handler {
	api := http.NewServeMux()
	ambulances.New(s.Registry, matcher.New(s.cfg.Dispatch.AverageSpeedKmh)).Register(api)
	emergency.New(s.Engine, s.Queue).Register(api)
	coordinator.New(s.Engine, s.Queue, analytics.New(s.store, s.Queue)).Register(api)
	driver.New(s.Engine).Register(api)

	// the websocket and liveness endpoints stay outside the token check
	root := http.NewServeMux()
	root.Handle("/api/", respond.Auth(s.cfg.Server.AuthToken, api))
	root.Handle("GET /ws", realtime.Handler(s.Hub, logger.New("realtime")))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return root
}

// Run starts the service and blocks until the context is cancelled or the
// HTTP server fails.
func (s *Service) Run(ctx context.Context) error {
	go s.bridge.Run(ctx)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("api listening on %s", s.cfg.Server.Addr)
		errCh <- s.server.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.ingest != nil {
		s.ingest.Close()
	}
	if s.influx != nil {
		s.influx.Close()
	}
	s.bus.Close()
	return s.store.Close()
}
