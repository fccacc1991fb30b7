// Package app wires the fleet, dispatch and transport components into a
// runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kilianp07/fleetdispatch/api"
	"github.com/kilianp07/fleetdispatch/api/feed"
	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/core/directory"
	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/journal"
	"github.com/kilianp07/fleetdispatch/core/maintenance"
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	coremon "github.com/kilianp07/fleetdispatch/core/monitoring"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/infra/metrics"
	"github.com/kilianp07/fleetdispatch/infra/monitoring"
	"github.com/kilianp07/fleetdispatch/infra/mqtt"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// Service owns the dispatch manager and the components observing it.
type Service struct {
	Manager   *dispatch.Manager
	Directory *directory.Directory
	Journal   *journal.MemoryStore

	cfg     *config.Config
	bus     *eventbus.Bus
	sink    coremetrics.MetricsSink
	hub     *feed.Hub
	mqtt    *mqtt.PahoClient
	handler http.Handler
	log     logger.Logger
}

// New creates a Service from the configuration and registers the seed fleet.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Setup(cfg.Logging); err != nil {
		return nil, err
	}
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)

	reg := fleet.NewRegistry(
		fleet.WithTurnaround(cfg.Dispatch.Turnaround()),
		fleet.WithMaxTripsPerDay(cfg.Dispatch.MaxTripsPerDay),
	)
	dir := directory.New(
		directory.WithCapacityLookup(func(id string) (int, error) {
			st, err := reg.Get(id)
			if err != nil {
				return 0, err
			}
			return st.Vehicle().Capacity, nil
		}),
		directory.WithLogger(logger.New("directory")),
	)
	if err := dir.Load(cfg.Fleet.Directory()); err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.New(eventbus.WithBuffer(cfg.Dispatch.EventBuffer))
	mgr, err := dispatch.NewManager(dispatch.ManagerDeps{
		Fleet:   reg,
		Policy:  maintenance.NewPolicy(cfg.Maintenance),
		Routes:  dir,
		Users:   dir,
		Bus:     bus,
		Metrics: sink,
		Logger:  logger.New("dispatch"),
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}
	vehicles, err := cfg.Fleet.Models()
	if err != nil {
		return nil, err
	}
	for _, v := range vehicles {
		if err := mgr.RegisterVehicle(v); err != nil {
			return nil, fmt.Errorf("register %s: %w", v.ID, err)
		}
	}

	svc := &Service{
		Manager:   mgr,
		Directory: dir,
		Journal:   journal.NewMemoryStore(cfg.Fleet.JournalSize),
		cfg:       cfg,
		bus:       bus,
		sink:      sink,
		hub:       feed.NewHub(logger.New("feed"), feed.WithOriginPatterns(cfg.HTTP.AllowedOrigins...)),
		log:       logg,
	}
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.mqtt = client
	}
	svc.handler = api.NewServer(mgr,
		api.WithJournal(svc.Journal),
		api.WithRoutes(dir),
		api.WithBus(bus),
		api.WithFeed(svc.hub),
		api.WithLogger(logger.New("api")),
	).Router()
	return svc, nil
}

// Handler returns the REST API.
func (s *Service) Handler() http.Handler { return s.handler }

// Run starts the observers, the maintenance sweep and the HTTP listeners,
// then blocks until ctx is cancelled or a listener fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wait := func(done <-chan struct{}) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-done
		}()
	}
	wait(s.Directory.Listen(ctx, s.bus))
	wait(s.Journal.Listen(ctx, s.bus))
	wait(s.hub.Run(ctx, s.bus))
	if s.mqtt != nil {
		wait(mqtt.Forward(ctx, s.bus, s.mqtt, logger.New("mqtt_forward")))
		if err := mqtt.FeedLocations(s.mqtt, s.Manager, logger.New("mqtt_locations")); err != nil {
			return fmt.Errorf("subscribe locations: %w", err)
		}
	}

	errs := make(chan error, 2)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				errs <- fmt.Errorf("prom server: %w", err)
			}
		}()
	}
	if s.cfg.HTTP.Enabled() {
		go func() {
			if err := s.serveHTTP(ctx); err != nil {
				errs <- fmt.Errorf("http server: %w", err)
			}
		}()
	}
	if s.cfg.Maintenance.AutoFlag {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer coremon.Recover()
			s.sweepLoop(ctx, s.cfg.Maintenance.SweepInterval())
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
	}
	cancel()
	wg.Wait()
	if err != nil {
		coremon.CaptureException(err, map[string]string{"component": "service"})
	}
	return err
}

func (s *Service) serveHTTP(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.HTTP.ShutdownSeconds)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("serving api on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Service) sweepLoop(ctx context.Context, every time.Duration) {
	s.sweep()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() []string {
	flagged := s.Manager.SweepMaintenance()
	if len(flagged) > 0 {
		s.log.Infof("maintenance sweep flagged %v", flagged)
	}
	return flagged
}

type closer interface{ Close() }

func closeSink(sink coremetrics.MetricsSink) {
	switch s := sink.(type) {
	case *coremetrics.MultiSink:
		for _, inner := range s.Sinks {
			closeSink(inner)
		}
	case closer:
		s.Close()
	}
}

// Close releases the broker connection, the bus and the metrics sinks, then
// flushes pending error reports.
func (s *Service) Close() error {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	s.bus.Close()
	closeSink(s.sink)
	coremon.Flush(2 * time.Second)
	return nil
}
