package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Maruda-Patryk/api-library/catalog/config"
	"github.com/Maruda-Patryk/api-library/catalog/internal/handler"
	"github.com/Maruda-Patryk/api-library/catalog/internal/repository"
	"github.com/Maruda-Patryk/api-library/catalog/internal/server"
	"github.com/Maruda-Patryk/api-library/catalog/internal/service"
	"github.com/Maruda-Patryk/api-library/catalog/internal/transition"
	"github.com/Maruda-Patryk/api-library/catalog/migrations"
	"github.com/Maruda-Patryk/api-library/pkg/circuit_breaker"
	"github.com/Maruda-Patryk/api-library/pkg/kafka"
	"github.com/Maruda-Patryk/api-library/pkg/logger"
	"github.com/Maruda-Patryk/api-library/pkg/postgres"
)

const shutdownTimeout = 5 * time.Second

func Run(cfg config.Config) error {
	log := logger.NewLogger(cfg.Log, "catalog")
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	repo, closeRepo, err := NewRepository(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("repo %v", err)
	}
	defer closeRepo()

	events, closeEvents, err := newPublisher(cfg, log)
	if err != nil {
		return fmt.Errorf("events %v", err)
	}
	defer closeEvents()

	coord := transition.NewCoordinator(repo, log, transition.WithLockTimeout(cfg.Catalog.LockTimeout))
	svc := service.NewService(repo, coord, events, log)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.CatalogConsumerGroup)
		if err != nil {
			return fmt.Errorf("kafka.NewConsumer %v", err)
		}
		ch := handler.NewConsumer(svc.ApplyTransition, log)
		g.Go(func() error {
			kafka.Consume(gctx, consumer, ch, log, kafka.CatalogTransitionsTopic)
			return nil
		})
		g.Go(func() error {
			select {
			case <-ch.Ready():
				log.Info("kafka consumer ready", zap.String("topic", kafka.CatalogTransitionsTopic))
			case <-gctx.Done():
			}
			<-gctx.Done()
			return consumer.Close()
		})
	}

	h := handler.New(svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)),
		zap.String("storage", cfg.Catalog.Storage))
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Graceful shutdown")
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	err = g.Wait()
	log.Info("Graceful shutdown finished", zap.Error(err))
	return err
}

// NewRepository opens the configured storage. The memory storage starts with the sample members.
func NewRepository(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.Repository, func(), error) {
	switch cfg.Catalog.Storage {
	case config.StorageMemory:
		repo := repository.NewMemoryRepository(log)
		for _, m := range repository.SampleMembers() {
			if _, err := repo.CreateMember(ctx, m); err != nil {
				return nil, nil, err
			}
		}
		return repo, func() {}, nil
	default:
		db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
		if err != nil {
			return nil, nil, fmt.Errorf("db init %v", err)
		}
		repo, err := repository.NewRepository(db, cfg.Catalog.LockTimeout, log)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, db.Close, nil
	}
}

func newPublisher(cfg config.Config, log *zap.Logger) (service.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return service.NopPublisher{}, func() {}, nil
	}
	producer, err := kafka.NewAsyncProducer(cfg.Kafka)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka.NewAsyncProducer %v", err)
	}
	p := service.NewKafkaPublisher(producer, circuit_breaker.New(cfg.Breaker), log)
	return p, func() {
		if err := p.Close(); err != nil {
			log.Error("events close", zap.Error(err))
		}
	}, nil
}
