package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rfidaccess/internal/attendance"
	"rfidaccess/internal/auth"
	"rfidaccess/internal/config"
	"rfidaccess/internal/device"
	"rfidaccess/internal/handler"
	"rfidaccess/internal/httpmiddleware"
	"rfidaccess/internal/ledger"
	applog "rfidaccess/internal/logger"
	"rfidaccess/internal/metrics"
	"rfidaccess/internal/person"
	"rfidaccess/internal/presence"
	"rfidaccess/internal/queue"
	"rfidaccess/internal/report"
	"rfidaccess/internal/scan"
	"rfidaccess/internal/store"
	"rfidaccess/internal/trimester"
	"rfidaccess/internal/worker"
)

func main() {
	cfg := config.Load()

	logger, err := applog.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
		if cfg.JWTSigningKey == "dev-signing-secret-change" {
			logger.Warn("JWT_SIGNING_KEY is the development default")
		}
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api server failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database -> %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate -> %w", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	g, gctx := errgroup.WithContext(ctx)

	var (
		q     queue.Queue
		board *presence.Board
	)
	switch cfg.QueueBackend {
	case "redis":
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
		board = presence.NewBoard(redisClient.Client, presence.DefaultKey, cfg.PresenceTTL)
	case "memory":
		mem := queue.NewInMemory(256)
		q = mem
		board = presence.NewBoard(redisClient.Client, presence.DefaultKey, cfg.PresenceTTL)
		proc := worker.New(board, m, logger.Named("worker"))
		g.Go(func() error { return proc.Run(gctx, mem) })
	case "none", "":
		q = queue.Discard{}
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}

	calendar := trimester.NewCalendar(cfg.Timezone)
	payments := ledger.New(db.Client, logger.Named("ledger"))
	persons := person.NewDirectory(person.NewRepository(db.Client), payments, logger.Named("person"))
	recorder := attendance.NewRecorder(attendance.NewRepository(db.Client), logger.Named("attendance"))
	scans := scan.NewService(persons, recorder, calendar, logger.Named("scan"),
		scan.WithPublisher(scan.QueuePublisher{Queue: q}),
		scan.WithObserver(m),
	)
	devices := device.NewService(device.NewRepository(db.Client), device.TokenConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}, logger.Named("device"))

	deps := handler.Deps{
		Scans:      scans,
		Payments:   payments,
		Persons:    persons,
		Attendance: recorder,
		Reports:    report.NewService(db.Client, calendar, logger.Named("report")),
		Devices:    devices,
		Observer:   m,
		Logger:     logger,
	}
	if board != nil {
		deps.Presence = board
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(logger, "/healthz", "/metrics"))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		redisHealthy := cfg.QueueBackend == "none" || redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"db": dbHealthy, "redis": redisHealthy, "time": calendar.Today().Format(time.RFC3339)})
	})

	var scanGuard []gin.HandlerFunc
	if cfg.DeviceAuth {
		scanGuard = append(scanGuard, auth.DeviceAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	}
	handler.RegisterRoutes(r.Group("/v1"), deps, scanGuard...)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("db_driver", db.Driver),
			zap.String("queue", cfg.QueueBackend),
			zap.Bool("device_auth", cfg.DeviceAuth))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("server exited")
	return err
}

// corsConfig allows any origin when the list is empty or contains "*"; credentials are only
// allowed for an explicit origin list.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		MaxAge:        24 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			origins = nil
			break
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
