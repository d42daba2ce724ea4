package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	httpadapter "github.com/veracore/veracore/internal/adapter/http"
	"github.com/veracore/veracore/internal/adapter/persistence"
	"github.com/veracore/veracore/internal/config"
	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
	"github.com/veracore/veracore/internal/service/logger"
	"github.com/veracore/veracore/internal/service/password"
	"github.com/veracore/veracore/internal/service/ratelimit"
	"github.com/veracore/veracore/internal/service/token"
	"github.com/veracore/veracore/internal/usecase"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	structuredLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "veracore",
	})
	structuredLogger.Info(ctx, "engine starting", map[string]interface{}{
		"env": cfg.Server.Environment,
	})

	// Journal: postgres when configured, in-memory otherwise. The
	// in-memory journal loses state on restart and exists for dev only.
	var journal ports.Journal
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			log.Fatalf("failed to ping database: %v", err)
		}
		journal = persistence.NewPostgresJournal(db)
		structuredLogger.Info(ctx, "journal backed by postgres", nil)
	} else {
		journal = persistence.NewMemoryJournal()
		structuredLogger.Warn(ctx, "no DATABASE_URL set, journal is in-memory", nil)
	}

	rateLimitService, err := ratelimit.NewService(ratelimit.Config{
		Enabled:       cfg.RateLimit.Enabled,
		RedisURL:      cfg.Redis.URL,
		Requests:      cfg.RateLimit.Requests,
		Window:        cfg.RateLimit.Window,
		BlockDuration: cfg.RateLimit.BlockDuration,
	}, logrus.New())
	if err != nil {
		log.Fatalf("failed to initialize rate limiting: %v", err)
	}

	tokenService, err := token.NewService(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		log.Fatalf("failed to initialize token service: %v", err)
	}
	secretVerifier := password.NewBcryptService(0)

	clock := ports.SystemClock{}
	ledgerUC := usecase.NewLedgerUseCase(journal, clock, structuredLogger)
	registryUC := usecase.NewRegistryUseCase(journal, clock, structuredLogger)
	queueUC := usecase.NewQueueUseCase(ledgerUC, journal, clock, structuredLogger)

	stake := domain.Denomination(cfg.Engine.StakeDenomination)
	tallyUC := usecase.NewTallyUseCase(journal, clock, structuredLogger,
		usecase.BalanceWeight(ledgerUC, stake))

	registerKinds(registryUC)
	registerComposition(queueUC, tallyUC, registryUC, ledgerUC)

	// Kinds and callbacks must be in place before replay so journaled
	// records find their transition tables.
	recovery := usecase.NewRecovery(ledgerUC, registryUC, queueUC, tallyUC, journal, structuredLogger)
	if err := recovery.Replay(ctx); err != nil {
		log.Fatalf("journal replay failed: %v", err)
	}

	operators := make(map[string]httpadapter.Operator, len(cfg.Engine.Operators))
	for _, op := range cfg.Engine.Operators {
		caps := make([]domain.Capability, len(op.Capabilities))
		for i, c := range op.Capabilities {
			caps[i] = domain.Capability(c)
		}
		operators[op.ID] = httpadapter.Operator{SecretHash: op.SecretHash, Capabilities: caps}
	}

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, httpadapter.Deps{
		Ledger:    ledgerUC,
		Registry:  registryUC,
		Queue:     queueUC,
		Tally:     tallyUC,
		Tokens:    tokenService,
		RateLimit: rateLimitService,
		RateLimits: httpadapter.RateLimits{
			TokenRequests:   cfg.RateLimit.TokenRequests,
			TokenWindow:     cfg.RateLimit.TokenWindow,
			GeneralRequests: cfg.RateLimit.Requests,
			GeneralWindow:   cfg.RateLimit.Window,
			BlockDuration:   cfg.RateLimit.BlockDuration,
		},
		Verifier:  secretVerifier,
		Operators: operators,
		Logger:    structuredLogger,
	})

	go func() {
		if err := server.Start(); err != nil {
			structuredLogger.Error(ctx, "server stopped", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "forced shutdown", err, nil)
	}
	structuredLogger.Info(ctx, "engine exited", nil)
}

// registerKinds installs the deployment's entity lifecycles. Kinds are
// configuration, not journaled state.
func registerKinds(registry *usecase.RegistryUseCase) {
	must(registry.RegisterKind("proposal", domain.KindSpec{
		Initial: "PROPOSED",
		Transitions: map[domain.Status][]domain.Status{
			"PROPOSED": {"APPROVED", "REJECTED"},
			"APPROVED": {"ACTIVE"},
			"ACTIVE":   {"COMPLETED"},
		},
		Capabilities: map[domain.TransitionKey]domain.Capability{
			{From: "PROPOSED", To: "APPROVED"}: domain.CapRegistryWrite,
			{From: "PROPOSED", To: "REJECTED"}: domain.CapRegistryWrite,
		},
	}))

	must(registry.RegisterKind("grant", domain.KindSpec{
		Initial: "DRAFT",
		Transitions: map[domain.Status][]domain.Status{
			"DRAFT":  {"OPEN", "CLOSED"},
			"OPEN":   {"FUNDED", "CLOSED"},
			"FUNDED": {"CLOSED"},
		},
		Capabilities: map[domain.TransitionKey]domain.Capability{
			{From: "OPEN", To: "FUNDED"}: domain.CapLedgerMove,
		},
	}))
}

// registerComposition wires the built-in conditions, effects and vote
// rules that let components drive each other without direct coupling.
func registerComposition(queue *usecase.QueueUseCase, tally *usecase.TallyUseCase,
	registry *usecase.RegistryUseCase, ledger *usecase.LedgerUseCase) {
	queue.RegisterCondition("always", usecase.AlwaysCondition())
	queue.RegisterCondition("tally_passed", usecase.TallyPassedCondition(tally))
	queue.RegisterCondition("entity_in_status", usecase.EntityStatusCondition(registry))

	queue.RegisterEffect("noop", usecase.NoopEffect())
	queue.RegisterEffect("transfer", usecase.TransferEffect(ledger))
	queue.RegisterEffect("entity_transition", usecase.EntityTransitionEffect(registry,
		domain.NewCapabilitySet(domain.CapRegistryWrite)))

	tally.RegisterEarlyRule("supermajority", usecase.SupermajorityEarlyRule(2, 3, 3))
}

func must(err error) {
	if err != nil {
		log.Fatalf("startup wiring failed: %v", err)
	}
}
