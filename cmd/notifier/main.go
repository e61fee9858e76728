package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/config"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/telemetry"
)

const orderQueue = "storefront.order-notifications"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustOneOf(cfg.NotifyTransport, "NOTIFY_TRANSPORT", notify.TransportKafka, notify.TransportRabbitMQ)

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName+"-notifier")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName+"-notifier", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("tracer: %v", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := pkgdb.Open(openCtx, cfg.DatabaseURL)
	if err == nil {
		err = repo.Migrate(openCtx, db)
	}
	cancel()
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	handler := notify.NewOrderNotifier(repo.New(db))

	logger.Info("notifier_started", "transport", cfg.NotifyTransport, "topic", notify.TopicOrders)
	switch cfg.NotifyTransport {
	case notify.TransportKafka:
		config.MustNonEmptyList(cfg.KafkaBrokers, "KAFKA_BROKERS")
		consumer := notify.NewKafkaConsumer(cfg.KafkaBrokers, notify.TopicOrders, cfg.KafkaGroupID)
		err = consumer.Run(ctx, handler)
		_ = consumer.Close()
	case notify.TransportRabbitMQ:
		config.MustNonEmpty(cfg.RabbitMQURL, "RABBITMQ_URL")
		mq, derr := notify.DialRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if derr != nil {
			log.Fatalf("rabbitmq: %v", derr)
		}
		err = mq.Consume(ctx, orderQueue, notify.TopicOrders, handler)
		_ = mq.Close()
	}
	if err != nil {
		logger.Error("consumer_exited", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := pkgdb.Close(db); err != nil {
		logger.Warn("db_close_failed", "error", err)
	}
	_ = shutdownTracer(shutdownCtx)

	logger.Info("notifier stopped")
}
