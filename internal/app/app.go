package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/propdesk/prop-pipeline/external/oddsboard"
	"github.com/propdesk/prop-pipeline/external/sportsfeed"
	"github.com/propdesk/prop-pipeline/internal/config"
	"github.com/propdesk/prop-pipeline/internal/domain/game"
	"github.com/propdesk/prop-pipeline/internal/domain/odds"
	"github.com/propdesk/prop-pipeline/internal/domain/prop"
	"github.com/propdesk/prop-pipeline/internal/domain/team"
	"github.com/propdesk/prop-pipeline/internal/domain/validation"
	"github.com/propdesk/prop-pipeline/internal/infrastructure/repository/memory"
	"github.com/propdesk/prop-pipeline/internal/infrastructure/repository/postgres"
	"github.com/propdesk/prop-pipeline/internal/interfaces/httpapi"
	"github.com/propdesk/prop-pipeline/internal/platform/cache"
	idgen "github.com/propdesk/prop-pipeline/internal/platform/id"
	"github.com/propdesk/prop-pipeline/internal/platform/logging"
	"github.com/propdesk/prop-pipeline/internal/platform/ratebudget"
	"github.com/propdesk/prop-pipeline/internal/platform/resilience"
	"github.com/propdesk/prop-pipeline/internal/usecase"
)

const (
	syncJobTimeout     = 10 * time.Minute
	validateJobTimeout = 5 * time.Minute
	sweepJobTimeout    = time.Minute
)

// App wires repositories, providers, services, and the HTTP surface.
type App struct {
	Server *http.Server

	cfg               config.Config
	logger            *logging.Logger
	db                *sqlx.DB
	cron              *cron.Cron
	syncService       *usecase.SyncService
	validationService *usecase.ValidationService
	propService       *usecase.PropService
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var (
		db             *sqlx.DB
		teamRepo       team.Repository
		gameRepo       game.Repository
		oddsRepo       odds.Repository
		propRepo       prop.Repository
		validationRepo validation.Repository
	)

	if strings.TrimSpace(cfg.DBURL) != "" {
		opened, err := otelsqlx.Open("postgres", cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		opened.SetMaxOpenConns(16)
		opened.SetMaxIdleConns(4)
		opened.SetConnMaxLifetime(30 * time.Minute)

		db = opened
		teamRepo = postgres.NewTeamRepository(db)
		gameRepo = postgres.NewGameRepository(db)
		oddsRepo = postgres.NewOddsRepository(db)
		propRepo = postgres.NewPropRepository(db)
		validationRepo = postgres.NewValidationRepository(db)
		logger.Info("using postgres repositories", "db", dbNameFromURL(cfg.DBURL))
	} else {
		teamRepo = memory.NewTeamRepository(nil)
		gameRepo = memory.NewGameRepository(nil)
		oddsRepo = memory.NewOddsRepository()
		propRepo = memory.NewPropRepository()
		validationRepo = memory.NewValidationRepository()
		logger.Info("using in-memory repositories", "reason", "DB_URL empty")
	}

	feed := sportsfeed.NewClient(sportsfeed.ClientConfig{
		BaseURL:    cfg.SportsfeedBaseURL,
		Token:      cfg.SportsfeedToken,
		Timeout:    cfg.SportsfeedTimeout,
		MaxRetries: cfg.SportsfeedMaxRetries,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.SportsfeedCircuitEnabled,
			FailureThreshold: cfg.SportsfeedCircuitFailureCount,
			OpenTimeout:      cfg.SportsfeedCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.SportsfeedCircuitHalfOpenMaxReq,
		},
	})

	boardCircuit := resilience.DefaultCircuitBreakerConfig()
	boardCircuit.Enabled = cfg.OddsboardCircuitEnabled
	board := oddsboard.NewClient(oddsboard.ClientConfig{
		BaseURL:    cfg.OddsboardBaseURL,
		Token:      cfg.OddsboardToken,
		Timeout:    cfg.OddsboardTimeout,
		MaxRetries: cfg.OddsboardMaxRetries,
		Logger:     logger,
		Budget: ratebudget.New(ratebudget.Limits{
			Monthly:     cfg.OddsboardMonthlyCalls,
			Daily:       cfg.OddsboardDailyCalls,
			Hourly:      cfg.OddsboardHourlyCalls,
			MinInterval: cfg.OddsboardMinInterval,
		}),
		Cache:          cache.NewStore(0),
		CircuitBreaker: boardCircuit,
	})

	normalizer, err := usecase.NewTemporalNormalizer()
	if err != nil {
		return nil, fmt.Errorf("build temporal normalizer: %w", err)
	}

	ingestion := usecase.NewIngestionService(teamRepo, gameRepo, oddsRepo, logger)
	props := usecase.NewPropService(propRepo, gameRepo, validationRepo, idgen.NewUUIDGenerator(), logger)
	syncSvc := usecase.NewSyncService(feed, feed, board, feed, ingestion, props, normalizer, teamRepo, gameRepo, logger)
	validationSvc := usecase.NewValidationService(validationRepo, gameRepo, teamRepo, feed, usecase.ValidationConfig{
		Workers:        cfg.ValidationWorkers,
		MaxAttempts:    cfg.ValidationMaxAttempts,
		FinalityWindow: cfg.ValidationFinalityWindow,
	}, logger)

	handler := httpapi.NewHandler(props, syncSvc, validationSvc, cfg.SyncSports, cfg.SyncDaysAhead, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:            server,
		cfg:               cfg,
		logger:            logger,
		db:                db,
		syncService:       syncSvc,
		validationService: validationSvc,
		propService:       props,
	}, nil
}

// StartJobs registers the recurring sync, validation, and sweep jobs.
func (a *App) StartJobs() error {
	if !a.cfg.CronEnabled {
		a.logger.Info("cron jobs disabled", "reason", "CRON_ENABLED=false")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(a.cfg.CronSyncSpec, a.runScheduledSync); err != nil {
		return fmt.Errorf("register sync job: %w", err)
	}
	if _, err := c.AddFunc(a.cfg.CronValidateSpec, a.runScheduledValidation); err != nil {
		return fmt.Errorf("register validation job: %w", err)
	}
	if _, err := c.AddFunc(a.cfg.CronSweepSpec, a.runScheduledSweep); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	c.Start()
	a.cron = c

	a.logger.Info("cron jobs started",
		"sync_spec", a.cfg.CronSyncSpec,
		"validate_spec", a.cfg.CronValidateSpec,
		"sweep_spec", a.cfg.CronSweepSpec,
	)
	return nil
}

func (a *App) runScheduledSync() {
	ctx, cancel := context.WithTimeout(context.Background(), syncJobTimeout)
	defer cancel()

	now := time.Now().UTC()
	dates := usecase.DateRange{From: now, To: now.AddDate(0, 0, a.cfg.SyncDaysAhead)}
	for _, sport := range a.cfg.SyncSports {
		stats, err := a.syncService.RunSync(ctx, sport, dates)
		if err != nil {
			a.logger.WarnContext(ctx, "scheduled sync failed", "sport", sport, "error", err)
			continue
		}
		a.logger.InfoContext(ctx, "scheduled sync completed",
			"sport", sport,
			"added", stats.Added,
			"updated", stats.Updated,
			"errors", stats.Errors,
		)
	}
}

func (a *App) runScheduledValidation() {
	ctx, cancel := context.WithTimeout(context.Background(), validateJobTimeout)
	defer cancel()

	result, err := a.validationService.RunValidation(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "scheduled validation failed", "error", err)
		return
	}
	a.logger.InfoContext(ctx, "scheduled validation completed",
		"updated", result.Updated,
		"errors", result.Errors,
		"remaining", result.Remaining,
	)
}

func (a *App) runScheduledSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepJobTimeout)
	defer cancel()

	stats, err := a.propService.Sweep(ctx, time.Now().UTC())
	if err != nil {
		a.logger.WarnContext(ctx, "scheduled sweep failed", "error", err)
		return
	}
	a.logger.InfoContext(ctx, "scheduled sweep completed",
		"marked", stats.Marked,
		"purged", stats.Purged,
		"errors", stats.Errors,
	)
}

// Close stops the cron scheduler and releases the database pool. The HTTP
// server is shut down separately by the caller.
func (a *App) Close(ctx context.Context) error {
	if a.cron != nil {
		stopped := a.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}
