package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/instaflow/configs"
	"github.com/maheshrc27/instaflow/internal/api/handlers"
	"github.com/maheshrc27/instaflow/internal/api/middleware"
	job "github.com/maheshrc27/instaflow/internal/jobs"
	"github.com/maheshrc27/instaflow/internal/media"
	"github.com/maheshrc27/instaflow/internal/publisher"
	"github.com/maheshrc27/instaflow/internal/queue"
	"github.com/maheshrc27/instaflow/internal/repository"
	"github.com/maheshrc27/instaflow/internal/repository/migrations"
	"github.com/maheshrc27/instaflow/internal/scheduler"
	"github.com/maheshrc27/instaflow/internal/service"
	"github.com/maheshrc27/instaflow/pkg/utils"
	"github.com/robfig/cron"
)

func main() {
	var issueToken string
	var tokenTTL time.Duration
	flag.StringVar(&issueToken, "issue-token", "", "print an API token for the named operator and exit")
	flag.DurationVar(&tokenTTL, "token-ttl", 30*24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	switch len(cfg.SecretKey) {
	case 16, 24, 32:
	default:
		log.Fatalf("SECRET_KEY must be 16, 24 or 32 bytes, got %d", len(cfg.SecretKey))
	}

	if issueToken != "" {
		token, err := utils.GenerateToken(cfg.SecretKey, issueToken, tokenTTL)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	if version, dirty, err := migrations.Version(db); err == nil {
		log.Printf("Database schema at version %d (dirty=%v)", version, dirty)
	}

	ctx := context.Background()

	store, err := newMediaStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up media store: %v", err)
	}

	adapter, err := publisher.New(*cfg)
	if err != nil {
		log.Fatalf("Failed to set up publisher: %v", err)
	}

	contentRepo := repository.NewContentRepository(db)
	accountRepo := repository.NewAccountRepository(db, cfg.SecretKey)

	var (
		client    *asynq.Client
		alerter   scheduler.Alerter = scheduler.LogAlerter()
		redisConn asynq.RedisClientOpt
	)
	if cfg.RedisURI != "" {
		redisConn = asynq.RedisClientOpt{Addr: cfg.RedisURI}
		client = asynq.NewClient(redisConn)
		alerter = queue.NewAlerter(client, cfg.ReconcileMaxRetry)
	} else {
		log.Println("Warning: REDIS_URI not set, stuck content is reported to the log only")
	}

	sched := scheduler.New(contentRepo, accountRepo, store, adapter, scheduler.Options{
		Alerter:        alerter,
		Logger:         slog.Default(),
		PublishTimeout: cfg.PublishTimeout,
		WriteTimeout:   cfg.StatusWriteTimeout,
	})

	recoverCtx, cancelRecover := context.WithTimeout(ctx, time.Minute)
	report, err := sched.RecoverAll(recoverCtx)
	cancelRecover()
	if err != nil {
		log.Fatalf("Failed to recover scheduled content: %v", err)
	}
	log.Printf("Recovered scheduled content: %d armed, %d elapsed, %d errors", report.Armed, report.Elapsed, report.Errors)

	contentService := service.NewContentService(contentRepo, accountRepo, store, sched)
	accountService := service.NewAccountService(accountRepo)

	// cron jobs
	stuckJob := job.NewStuckContentJob(contentRepo, sched, alerter, cfg.StuckGrace)
	c := cron.New()
	if err := c.AddFunc(cfg.AuditSpec, stuckJob.Run); err != nil {
		log.Fatalf("Invalid AUDIT_SPEC %q: %v", cfg.AuditSpec, err)
	}
	c.Start()

	// queue
	var server *asynq.Server
	if client != nil {
		server = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})
		queueW := queue.NewQueue(contentRepo)
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeReconcileContent, queueW.HandleReconcileTask)

		log.Println("Starting the Asynq server...")
		if err := server.Start(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	health := handlers.NewHealthHandler(db, sched)
	app.Get("/health", health.Health)

	if cfg.MediaBackend == "local" {
		app.Static("/uploads", cfg.UploadDir)
	}

	authMiddleware := middleware.NewAuthMiddleware(*cfg)
	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	accounts := handlers.NewAccountHandler(accountService)
	api.Post("/accounts", accounts.AddAccount)
	api.Get("/accounts", accounts.ListAccounts)

	content := handlers.NewContentHandler(contentService)
	api.Post("/content", content.CreateContent)
	api.Get("/content", content.ListContent)
	api.Get("/content/:id", content.GetContent)
	api.Put("/content/:id", content.EditContent)
	api.Delete("/content/:id", content.RemoveContent)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.ListenAddr)

	gracefulShutdown(app, c, server, client, sched, db, cfg)
}

func newMediaStore(ctx context.Context, cfg *config.Config) (media.Store, error) {
	switch cfg.MediaBackend {
	case "", "local":
		store, err := media.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "r2":
		store, err := media.NewR2Store(ctx, cfg.R2)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown MEDIA_BACKEND %q", cfg.MediaBackend)
	}
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, server *asynq.Server, client *asynq.Client, sched *scheduler.Scheduler, db *sql.DB, cfg *config.Config) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	sd := shutdown{
		stopHTTP:      app.Shutdown,
		stopCron:      c.Stop,
		stopScheduler: sched.Stop,
		drain:         drainTimeout(cfg.PublishTimeout, cfg.StatusWriteTimeout),
		closeDB:       func() { closeDB(db) },
	}
	if server != nil {
		sd.stopQueue = server.Shutdown
	}
	if client != nil {
		sd.closeClient = client.Close
	}
	sd.run()
	log.Println("Server shutdown complete.")
}
