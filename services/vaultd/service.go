// Package vaultd assembles the vault daemon from its configuration: ledger
// storage, genesis bootstrap, the event journal and stream, and the HTTP API.
package vaultd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"yzyvault/core/app"
	"yzyvault/core/events"
	"yzyvault/core/genesis"
	"yzyvault/core/state"
	"yzyvault/observability/metrics"
	"yzyvault/services/vaultd/config"
	"yzyvault/services/vaultd/server"
	"yzyvault/storage"
	"yzyvault/storage/journal"
)

// Service owns every long lived resource of the daemon.
type Service struct {
	cfg         config.Config
	logger      *slog.Logger
	db          storage.Database
	app         *app.App
	journal     *journal.Journal
	broadcaster *events.Broadcaster
	handler     http.Handler
}

// New opens storage, applies genesis on first start and builds the HTTP
// handler. Close releases everything New acquired.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{cfg: cfg, logger: logger}
	if err := svc.init(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) init(ctx context.Context) error {
	spec, err := genesis.LoadGenesisSpec(s.cfg.Genesis)
	if err != nil {
		return err
	}
	seed, err := spec.Seed()
	if err != nil {
		return err
	}

	s.db, err = storage.Open(s.cfg.Storage.Backend, s.cfg.Storage.Path)
	if err != nil {
		return err
	}
	s.app = app.New(state.NewManager(s.db))
	s.app.SetLogger(s.logger)
	s.app.SetMetrics(metrics.Vault())

	s.broadcaster = events.NewBroadcaster(s.cfg.Stream.Buffer)
	emitters := events.MultiEmitter{s.broadcaster}
	if s.cfg.Journal.Enabled() {
		db, err := journal.Open(s.cfg.Journal.Driver, s.cfg.Journal.DSN)
		if err != nil {
			return err
		}
		s.journal, err = journal.New(db)
		if err != nil {
			return err
		}
		s.journal.SetLogger(s.logger)
		emitters = append(emitters, s.journal)
	} else {
		s.logger.Warn("event journal disabled; /v1/events will be unavailable")
	}
	s.app.SetEmitter(emitters)

	applied, err := s.app.Bootstrap(ctx, seed)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if !applied {
		s.logger.Info("existing ledger found, genesis skipped", "backend", s.cfg.Storage.Backend)
	}

	secret, err := s.cfg.Auth.ResolveSecret(os.Getenv)
	if err != nil {
		return err
	}
	s.handler, err = server.New(server.Config{
		App:         s.app,
		Journal:     s.journal,
		Broadcaster: s.broadcaster,
		Auth: server.AuthConfig{
			HMACSecret:     secret,
			Issuer:         s.cfg.Auth.Issuer,
			Audience:       s.cfg.Auth.Audience,
			AnonymousReads: s.cfg.Auth.AnonymousReads,
			ClockSkew:      s.cfg.Auth.ClockSkew.Duration,
		},
		RateLimit: server.RateLimit{
			RequestsPerMinute: s.cfg.RateLimit.RequestsPerMinute,
			Burst:             s.cfg.RateLimit.Burst,
		},
		Logger:       s.logger,
		StreamWrite:  s.cfg.Stream.WriteTimeout.Duration,
		ServiceName:  "vaultd",
		DisableTrace: !s.cfg.Telemetry.Traces,
	})
	return err
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler { return s.handler }

// App exposes the application for embedding and tests.
func (s *Service) App() *app.App { return s.app }

// Serve accepts connections on listener until ctx is cancelled, then drains
// in-flight requests within the configured shutdown timeout.
func (s *Service) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("vaultd listening", "addr", listener.Addr().String())
		serverErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("forcing server stop", "error", err)
			_ = httpServer.Close()
		}
		return nil
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases storage and the journal.
func (s *Service) Close() error {
	var errs []error
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
