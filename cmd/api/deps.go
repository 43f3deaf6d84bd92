package main

import (
	"context"
	"log"
	"time"

	"finsight/internal/domain/billing"
	"finsight/internal/domain/report"
	domainsync "finsight/internal/domain/sync"
	"finsight/internal/infrastructure/crypto"
	"finsight/internal/infrastructure/firebase"
	"finsight/internal/infrastructure/plaid"
	"finsight/internal/infrastructure/postgres"
	"finsight/internal/infrastructure/redis"
	"finsight/internal/infrastructure/stripe"
	httphandlers "finsight/internal/interfaces/http"
	"finsight/internal/interfaces/scheduler"
	"finsight/internal/shared/auth"
	"finsight/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	InstitutionHandler   *httphandlers.InstitutionHandler
	TransactionHandler   *httphandlers.TransactionHandler
	ReportHandler        *httphandlers.ReportHandler
	BillingHandler       *httphandlers.BillingHandler
	PlaidWebhookHandler  *httphandlers.PlaidWebhookHandler
	StripeWebhookHandler *httphandlers.StripeWebhookHandler

	// Auth
	JWT *auth.JWT

	// Background processing
	Pool      *scheduler.WorkerPool
	Scheduler *scheduler.Scheduler
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	institutionRepo := postgres.NewInstitutionRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)

	// Provider clients
	plaidClient, err := plaid.NewClient(cfg.Plaid.ClientID, cfg.Plaid.Secret, cfg.Plaid.Env, encryptor)
	if err != nil {
		return nil, err
	}
	stripeClient := stripe.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.PriceID)

	// Report cache; optional, the app degrades to recomputing on every request.
	var caches httphandlers.ReportCaches
	var invalidator domainsync.Invalidator
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Warning: Redis unavailable, report caching disabled: %v", err)
		} else {
			caches = httphandlers.ReportCaches{
				Summary:    redis.NewViewCache[*report.Summary](redisClient, cfg.Redis.TTL),
				Monthly:    redis.NewViewCache[[]report.SeriesPoint](redisClient, cfg.Redis.TTL),
				Daily:      redis.NewViewCache[[]report.SeriesPoint](redisClient, cfg.Redis.TTL),
				Categories: redis.NewViewCache[[]report.CategoryTotal](redisClient, cfg.Redis.TTL),
			}
			invalidator = redis.NewInvalidator(redisClient)
			log.Println("Connected to Redis, report caching enabled")
		}
	}

	// Push notifications; optional.
	var notifier domainsync.Notifier
	if cfg.Firebase.CredentialsFile != "" {
		fcmClient, err := firebase.NewClient(context.Background(), cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Printf("Warning: Firebase unavailable, sync notifications disabled: %v", err)
		} else {
			notifier = fcmClient
			log.Println("Firebase messaging initialized")
		}
	}

	// Domain services
	syncService := domainsync.NewService(plaidClient, userRepo, institutionRepo, accountRepo, transactionRepo, invalidator, notifier)
	reportService := report.NewService(transactionRepo)
	billingService := billing.NewService(stripeClient, userRepo, encryptor)

	jwt := auth.NewJWT(cfg.JWT.Secret)

	// Background processing. The pool is shared by webhook-triggered syncs,
	// post-link initial syncs, and scheduled sweeps.
	pool := scheduler.NewWorkerPool(cfg.Scheduler.WorkerCount, cfg.Scheduler.JobDelay, cfg.Scheduler.QueueSize)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.NewScheduler(userRepo, syncService, pool, scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			Staleness:     cfg.Scheduler.Staleness,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
		})
		if err != nil {
			return nil, err
		}
	} else {
		log.Println("Scheduler is disabled")
	}

	// Handlers
	institutionHandler := httphandlers.NewInstitutionHandler(plaidClient, institutionRepo, accountRepo, syncService, pool)
	transactionHandler := httphandlers.NewTransactionHandler(transactionRepo)
	reportHandler := httphandlers.NewReportHandler(reportService, caches)
	billingHandler := httphandlers.NewBillingHandler(billingService)
	plaidWebhookHandler := httphandlers.NewPlaidWebhookHandler(plaidClient, syncService, pool, cfg.IsProduction())
	stripeWebhookHandler := httphandlers.NewStripeWebhookHandler(stripeClient, billingService)

	return &Dependencies{
		DB:                   db,
		InstitutionHandler:   institutionHandler,
		TransactionHandler:   transactionHandler,
		ReportHandler:        reportHandler,
		BillingHandler:       billingHandler,
		PlaidWebhookHandler:  plaidWebhookHandler,
		StripeWebhookHandler: stripeWebhookHandler,
		JWT:                  jwt,
		Pool:                 pool,
		Scheduler:            sched,
	}, nil
}

// Start launches background processing.
func (d *Dependencies) Start() {
	d.Pool.Start()
	if d.Scheduler != nil {
		d.Scheduler.Start()
	}
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close(timeout time.Duration) {
	if d.Scheduler != nil {
		d.Scheduler.Shutdown(timeout)
	}
	if d.Pool != nil {
		d.Pool.ShutdownWithTimeout(timeout)
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
