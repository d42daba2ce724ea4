package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/veracore/veracore/internal/ports"
	"github.com/veracore/veracore/internal/service/logger"
	"github.com/veracore/veracore/internal/usecase"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server exposes the engine over HTTP.
type Server struct {
	addr   string
	server *http.Server
	logger logger.Logger
}

// Deps bundles everything the server wires into its routes.
type Deps struct {
	Ledger    *usecase.LedgerUseCase
	Registry  *usecase.RegistryUseCase
	Queue     *usecase.QueueUseCase
	Tally     *usecase.TallyUseCase
	Tokens     ports.TokenService
	RateLimit  ports.RateLimitService
	RateLimits RateLimits
	Verifier   ports.SecretVerifier
	Operators  map[string]Operator
	Logger     logger.Logger
}

// NewServer builds the router and middleware chain.
func NewServer(config ServerConfig, deps Deps) *Server {
	auth := NewAuthMiddleware(deps.Tokens)
	rateLimit := NewRateLimitMiddleware(deps.RateLimit, deps.RateLimits, deps.Logger)

	router := mux.NewRouter()

	NewAuthHandler(deps.Operators, deps.Verifier, deps.Tokens, deps.Logger).RegisterRoutes(router)
	NewLedgerHandler(deps.Ledger).RegisterRoutes(router, auth)
	NewRegistryHandler(deps.Registry).RegisterRoutes(router, auth)
	NewQueueHandler(deps.Queue).RegisterRoutes(router, auth)
	NewTallyHandler(deps.Tally).RegisterRoutes(router, auth)

	// Outermost first: correlation id, then recovery, logging, CORS and
	// rate limiting before any handler runs.
	router.Use(correlationMiddleware)
	router.Use(recoveryMiddleware(deps.Logger))
	router.Use(requestLogMiddleware(deps.Logger))
	router.Use(corsMiddleware)
	router.Use(rateLimit.RateLimit)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	addr := ":" + config.Port
	return &Server{
		addr:   addr,
		logger: deps.Logger,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "starting http server", map[string]interface{}{"addr": s.addr})
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server", nil)
	return s.server.Shutdown(ctx)
}
