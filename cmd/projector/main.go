package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-storefront/internal/config"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/projection"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-projector"
	if err := config.SetupLogging(os.Stderr, cfg.LogLevel, cfg.LogFormat, service); err != nil {
		log.Fatal().Err(err).Msg("logging")
	}
	if len(cfg.KafkaBrokers) == 0 || cfg.RedisAddr == "" {
		log.Fatal().Msg("projector needs KAFKA_BROKERS and REDIS_ADDR")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Fatal().Err(err).Msg("redis")
	}

	svc := &projection.Service{
		Cache:       redisx.NewOrderCache(rdb),
		ServiceName: service,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, cfg.OrderEventsTopic, cfg.ProjectorWorkers)
	done := make(chan struct{})
	var consErr error
	go func() {
		defer close(done)
		log.Info().
			Str("group", cfg.ProjectorGroup).
			Str("topic", cfg.OrderEventsTopic).
			Int("workers", cfg.ProjectorWorkers).
			Msg("projector consumer started")
		if consErr = cons.Start(ctx, svc.HandleOrderEvent); consErr != nil {
			log.Error().Err(consErr).Msg("consumer exit")
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info().Msg("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	<-done
	// offset belum di-commit; exit non-zero supaya event dikirim ulang setelah restart
	if consErr != nil {
		_ = rdb.Close()
		os.Exit(1)
	}
}
