package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/simaogato/settlement-backend/internal/adapter/client"
	grpcadapter "github.com/simaogato/settlement-backend/internal/adapter/grpc"
	httpadapter "github.com/simaogato/settlement-backend/internal/adapter/http"
	"github.com/simaogato/settlement-backend/internal/adapter/messaging"
	"github.com/simaogato/settlement-backend/internal/config"
	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/simaogato/settlement-backend/internal/metrics"
	"github.com/simaogato/settlement-backend/internal/usecase/otc"
	"github.com/simaogato/settlement-backend/internal/usecase/settlement"
	"github.com/simaogato/settlement-backend/internal/usecase/tracking"
	"github.com/simaogato/settlement-backend/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC API, the internal HTTP endpoints and the outbox relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) (err error) {
	store, err := openStorage(ctx, cfg, log, cfg.Storage.Migrate)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.close()) }()

	return run(ctx, cfg, log, store)
}

// run serves until ctx is cancelled or a component fails
func run(ctx context.Context, cfg *config.Config, log *zap.Logger, store *storage) (err error) {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	if err := seedSystemAccounts(ctx, cfg, log, store.uow); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Downstream services
	clientConfig := func(baseURL string) client.Config {
		return client.Config{
			BaseURL:        baseURL,
			Token:          cfg.Clients.Token,
			Timeout:        cfg.Clients.Timeout,
			RequestsPerSec: cfg.Clients.RequestsPerSec,
			Burst:          cfg.Clients.Burst,
		}
	}
	identity := client.NewIdentityClient(client.New(clientConfig(cfg.Clients.IdentityURL), log))
	verification := client.NewVerificationClient(client.New(clientConfig(cfg.Clients.VerificationURL), log))
	rates := client.NewExchangeRateClient(client.New(clientConfig(cfg.Clients.ExchangeURL), log))

	// Use cases
	settlementService := settlement.NewSettlementService(store.uow, rates, verification, identity, log, m)
	otcService := otc.NewOtcService(store.uow, settlementService, identity, log)
	correlator := tracking.NewCorrelator(store.uow, log, m)
	correlator.Register(domain.TrackedPaymentTypeOtcExercise, otcService)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.Addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Outcome delivery: through Kafka when configured, in process otherwise
	var publisher domain.OutcomePublisher = correlator
	if cfg.KafkaEnabled() {
		kafkaConfig := messaging.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			GroupID:      cfg.Kafka.GroupID,
			WriteTimeout: 10 * time.Second,
			RetryDelay:   cfg.Kafka.RetryDelay,
		}
		producer := messaging.NewOutcomeProducer(kafkaConfig, log)
		consumer := messaging.NewOutcomeConsumer(kafkaConfig, correlator, log)
		closers = append(closers, producer.Close, consumer.Close)
		publisher = producer

		g.Go(func() error { return consumer.Run(gctx) })
	}

	relay := worker.NewRelay(store.uow, publisher, log, m, worker.RelayConfig{
		Interval:    cfg.Relay.Interval,
		BatchSize:   cfg.Relay.BatchSize,
		Lease:       cfg.Relay.Lease,
		MaxAttempts: cfg.Relay.MaxAttempts,
		Backoff:     cfg.Relay.Backoff,
	})
	g.Go(func() error { return relay.Run(gctx) })

	// gRPC API
	interceptors := []grpclib.UnaryServerInterceptor{
		grpcadapter.LoggingInterceptor(log),
		grpcadapter.AuthInterceptor(cfg.GRPC.Token),
	}
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, rdb.Close)
		idempotency := grpcadapter.NewRedisIdempotencyStore(rdb)
		interceptors = append(interceptors, grpcadapter.IdempotencyInterceptor(idempotency, cfg.Redis.IdempotencyTTL, log))
	}

	grpcServer := grpclib.NewServer(grpclib.ChainUnaryInterceptor(interceptors...))
	grpcadapter.RegisterSettlementAPI(grpcServer, grpcadapter.NewServer(settlementService, otcService, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		return grpcServer.Serve(lis)
	})

	// Internal HTTP endpoints
	httpServer := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpadapter.NewRouter(httpadapter.Dependencies{
			Payments:  settlementService,
			Exercises: otcService,
			Tracked:   correlator,
			Outcomes:  correlator,
			Gatherer:  registry,
			Ready:     store.ready,
			Token:     cfg.HTTP.Token,
			Logger:    log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}
