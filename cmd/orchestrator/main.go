package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"registrar/cmd/orchestrator/config"
	"registrar/internal/broker/rabbit"
	"registrar/internal/enroll"
	"registrar/internal/event"
	"registrar/internal/mail"
	"registrar/internal/observability"
	"registrar/internal/realtime"
	"registrar/internal/reliability"
	"registrar/internal/saga"
	"registrar/internal/status"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("orchestrator error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := observability.NewLogger(os.Getenv("APP_ENV"))
	metrics := observability.NewMetrics()

	brokerCfg, err := config.LoadBroker()
	if err != nil {
		return err
	}
	statusCfg, err := config.LoadStatus()
	if err != nil {
		return err
	}
	smtpCfg, err := config.LoadSMTP()
	if err != nil {
		return err
	}

	gateway, err := buildGateway()
	if err != nil {
		return err
	}

	steps, cleanupStores := enroll.BuildStepService(ctx, os.Getenv("DATABASE_URL"), gateway, logger)
	defer cleanupStores()

	producer, err := rabbit.NewProducer(brokerCfg.URL, brokerCfg.Exchange, metrics, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	waiter := status.NewWaiter()
	statuses, cleanupStatus, err := buildStatusStore(logger)
	if err != nil {
		return err
	}
	defer cleanupStatus()

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	orchestrator := saga.New(saga.Config{
		Steps:     steps,
		Publisher: producer,
		Mailer:    buildMailer(smtpCfg, logger),
		MailFrom:  smtpCfg.From,
		Metrics:   metrics,
		Notifier:  hub,
		Logger:    logger,
	})
	bridge := saga.NewResultBridge(waiter, statuses, metrics, logger)

	permanent := func(err error) bool { return errors.Is(err, saga.ErrBadMessage) }

	sagaConsumer := rabbit.NewConsumer(rabbit.ConsumerConfig{
		URL:        brokerCfg.URL,
		Exchange:   brokerCfg.Exchange,
		Queue:      brokerCfg.SagaQueue,
		Bindings:   event.SagaRoutingKeys(),
		DeadLetter: brokerCfg.DeadLetter,
		MaxRetries: brokerCfg.MaxRetries,
		Permanent:  permanent,
	}, metrics, logger)

	resultConsumer := rabbit.NewConsumer(rabbit.ConsumerConfig{
		URL:        brokerCfg.URL,
		Exchange:   brokerCfg.Exchange,
		Queue:      brokerCfg.ResultQueue,
		Bindings:   event.ResultRoutingKeys(),
		DeadLetter: brokerCfg.ResultQueue + ".dead",
		MaxRetries: brokerCfg.MaxRetries,
		Permanent:  permanent,
	}, metrics, logger)

	obsSrv, err := startObservabilityServer(metrics, hub, waiter, statuses, statusCfg.WaitTimeout, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- sagaConsumer.Run(ctx, orchestrator.HandleMessage) }()
	go func() { errCh <- resultConsumer.Run(ctx, bridge.HandleMessage) }()

	logger.Info("orchestrator running",
		"exchange", brokerCfg.Exchange, "saga_queue", brokerCfg.SagaQueue, "result_queue", brokerCfg.ResultQueue)

	select {
	case <-ctx.Done():
		metrics.MarkShutdown(metrics.Snapshot().InFlight)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = obsSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func buildGateway() (enroll.PaymentGateway, error) {
	var base enroll.PaymentGateway = enroll.ApproveAll{}
	stub, err := config.PaymentStubEnabled()
	if err != nil {
		return nil, err
	}
	if stub {
		base = enroll.ParityStub{}
	}

	breaker := reliability.NewCircuitBreaker(reliability.CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 10 * time.Second,
	})
	return enroll.NewReliableGateway(base, breaker, reliability.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}), nil
}

func buildMailer(cfg config.SMTPConfig, logger *slog.Logger) mail.Sender {
	if cfg.Host == "" {
		return mail.LogSender{Logger: logger}
	}
	logger.Info("smtp relay enabled", "host", cfg.Host, "port", cfg.Port)
	sender := mail.NewSMTPSender(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.FromName)
	return mail.NewRetrySender(sender, reliability.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	})
}

func buildStatusStore(logger *slog.Logger) (status.Store, func(), error) {
	cfg, err := config.LoadRedis()
	if err != nil {
		return nil, nil, err
	}
	if cfg.URL == "" {
		logger.Info("status store in memory, outcomes are per-replica")
		return status.NewMemoryStore(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	logger.Info("redis status store enabled", "addr", opts.Addr, "ttl", cfg.StatusTTL)
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}
	return status.NewRedisStore(client, cfg.StatusTTL), cleanup, nil
}

func startObservabilityServer(
	metrics *observability.Metrics,
	hub *realtime.Hub,
	waiter *status.Waiter,
	statuses status.Store,
	waitTimeout time.Duration,
	logger *slog.Logger,
) (*http.Server, error) {
	cfg, err := config.LoadObservability()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))
	mux.Handle("/status", status.Handler(waiter, statuses, waitTimeout))
	mux.HandleFunc("/events", hub.ServeWS)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", "error", err)
		}
	}()

	return srv, nil
}
