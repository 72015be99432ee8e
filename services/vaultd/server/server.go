package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"yzyvault/core/app"
	"yzyvault/core/events"
	"yzyvault/storage/journal"
)

// Config wires the HTTP surface to the application.
type Config struct {
	App         *app.App
	Journal     *journal.Journal
	Broadcaster *events.Broadcaster
	Auth        AuthConfig
	RateLimit   RateLimit
	Logger      *slog.Logger
	// Gatherer backs /metrics. Defaults to the global prometheus registry.
	Gatherer     prometheus.Gatherer
	StreamWrite  time.Duration
	ServiceName  string
	DisableTrace bool
}

// Server exposes the vault and token ledgers over JSON/HTTP.
type Server struct {
	app         *app.App
	journal     *journal.Journal
	broadcaster *events.Broadcaster
	auth        *authenticator
	anonymous   bool
	limiter     *rateLimiter
	logger      *slog.Logger
	gatherer    prometheus.Gatherer
	streamWrite time.Duration
	handler     http.Handler
}

// New validates cfg and builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app required")
	}
	auth, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if cfg.StreamWrite <= 0 {
		cfg.StreamWrite = 5 * time.Second
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "vaultd"
	}
	s := &Server{
		app:         cfg.App,
		journal:     cfg.Journal,
		broadcaster: cfg.Broadcaster,
		auth:        auth,
		anonymous:   cfg.Auth.AnonymousReads,
		limiter:     newRateLimiter(cfg.RateLimit),
		logger:      logger.With("module", "http"),
		gatherer:    gatherer,
		streamWrite: cfg.StreamWrite,
	}
	router := s.routes()
	if cfg.DisableTrace {
		s.handler = router
	} else {
		s.handler = otelhttp.NewHandler(router, cfg.ServiceName)
	}
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(observe(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(v1 chi.Router) {
		// reads
		v1.Group(func(read chi.Router) {
			read.Use(s.auth.require(s.anonymous))
			read.Use(s.limiter.middleware)
			read.Get("/vault", s.handleSummary)
			read.Get("/vault/epochs", s.handleEpochs)
			read.Get("/vault/epochs/{epoch}", s.handleEpoch)
			read.Get("/vault/accounts/{addr}", s.handleAccount)
			read.Get("/vault/accounts/{addr}/reward", s.handleReward)
			read.Get("/vault/accounts/{addr}/epochs/{epoch}", s.handleAccountEpoch)
			read.Get("/tokens/{token}", s.handleToken)
			read.Get("/tokens/{token}/balances/{addr}", s.handleBalance)
			read.Get("/tokens/{token}/allowances/{owner}/{spender}", s.handleAllowance)
			read.Get("/events", s.handleEvents)
			read.Get("/events/stream", s.handleStream)
			read.Get("/exports/epochs.{format}", s.handleExport)
		})
		// writes
		v1.Group(func(write chi.Router) {
			write.Use(s.auth.require(false))
			write.Use(s.limiter.middleware)
			write.Post("/vault/stake", s.handleStake)
			write.Post("/vault/unstake", s.handleUnstake)
			write.Post("/vault/claim", s.handleClaim)
			write.Post("/vault/fees", s.handleDepositFee)
			write.Post("/vault/governance/{param}", s.handleVaultGovernance)
			write.Post("/tokens/{token}/transfer", s.handleTransfer)
			write.Post("/tokens/{token}/approve", s.handleApprove)
			write.Post("/tokens/{token}/governance/{param}", s.handleTokenGovernance)
		})
	})
	return r
}
