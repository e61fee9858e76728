package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/pkg/authclient"
	"github.com/Skotchmaster/storefront/pkg/config"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	"github.com/Skotchmaster/storefront/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
	"github.com/Skotchmaster/storefront/pkg/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustOneOf(cfg.NotifyTransport, "NOTIFY_TRANSPORT", notify.TransportKafka, notify.TransportRabbitMQ)

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = logging.IntoContext(rootCtx, logger)

	shutdownTracer, err := telemetry.SetupTracer(rootCtx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("tracer: %v", err)
	}

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	if err == nil {
		err = repo.Migrate(ctx, db)
	}
	cancel()
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		rdb     *redis.Client
		catalog *cache.CatalogCache
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		catalog = cache.NewCatalogCache(rdb, cfg.CatalogCacheTTL, m)
	} else {
		logger.Warn("catalog_cache_disabled", "reason", "REDIS_ADDR is empty")
	}

	publisher, err := notify.NewPublisher(cfg)
	if err != nil {
		log.Fatalf("publisher: %v", err)
	}

	r := repo.New(db)
	dispatcher := notify.NewDispatcher(r, publisher, cfg.OutboxBatchSize, cfg.OutboxPollInterval, m)

	dispatchCtx, stopDispatch := context.WithCancel(rootCtx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(dispatchCtx); err != nil {
			logger.Error("dispatcher_exited", "error", err)
		}
	}()

	health := &httpserver.HealthHTTP{DB: db}
	if rdb != nil {
		health.Redis = rdb
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(otelecho.Middleware(cfg.ServiceName))
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())
	if cfg.CSRFEnabled {
		csrfCfg := csrf.DefaultConfig()
		csrfCfg.SkipPaths = []string{"/health/live", "/health/ready", "/metrics"}
		e.Use(csrf.Middleware(csrfCfg))
	}

	deps := &httpserver.Deps{
		Catalog: &httpserver.CatalogHTTP{Svc: &service.CatalogService{Repo: r, Cache: catalog}},
		Cart:    &httpserver.CartHTTP{Svc: &service.CartService{Repo: r}},
		Orders: &httpserver.OrderHTTP{Svc: &service.OrderService{
			Repo:      r,
			Cache:     catalog,
			Metrics:   m,
			TxTimeout: cfg.OrderTxTimeout,
		}},
		Health:    health,
		Metrics:   m,
		JWTSecret: cfg.JWTAccessSecret,
	}
	if cfg.AuthHTTPURL != "" {
		deps.AuthClient = authclient.NewClient(cfg.AuthHTTPURL)
	}
	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("http_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutdown_started")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	}

	stopDispatch()
	wg.Wait()

	if err := publisher.Close(); err != nil {
		logger.Warn("publisher_close_failed", "error", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Warn("db_close_failed", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("tracer_shutdown_failed", "error", err)
	}

	logger.Info("storefront stopped")
}
