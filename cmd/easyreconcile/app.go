package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/application"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/infrastructure/matcher"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/infrastructure/messaging"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/infrastructure/persistence/mysql"
	"github.com/wyfcoding/easyreconcile/pkg/cache"
	"github.com/wyfcoding/easyreconcile/pkg/config"
	"github.com/wyfcoding/easyreconcile/pkg/db"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
	"github.com/wyfcoding/easyreconcile/pkg/metrics"
	"github.com/wyfcoding/easyreconcile/pkg/mq"
	"gorm.io/gorm"
)

// app 各子命令共用的依赖
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	redis    *cache.RedisCache
	producer *mq.KafkaProducer
	metrics  *metrics.Metrics

	tasks     *application.TaskService
	reconcile *application.ReconcileService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New(cfg.ServiceName)}

	gdb, err := db.Open(ctx, db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		return nil, err
	}
	a.db = gdb

	opts := []application.Option{application.WithMetrics(a.metrics)}

	if cfg.Redis.Enabled() {
		a.redis, err = cache.New(ctx, cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		opts = append(opts, application.WithRunLock(
			cache.NewLocker(a.redis, "easyreconcile:run:", cfg.Reconcile.RunLockTTLDuration()),
		))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		a.producer = mq.NewProducer(kafkaConfig(cfg))
		opts = append(opts, application.WithPublisher(
			messaging.NewKafkaPublisher(a.producer, cfg.Reconcile.EventTopic),
		))
	}

	registry, err := newRegistry(cfg)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	tasks := mysql.NewTaskRepository(gdb)
	history := mysql.NewHistoryRepository(gdb)
	lines := mysql.NewMoveLineRepository(gdb)
	tx := db.NewTransactor(gdb)
	if cfg.Database.Driver == "mysql" {
		// 读到匹配服务在事务外提交的对账组
		tx = tx.WithIsolation(sql.LevelReadCommitted)
	}

	a.tasks = application.NewTaskService(tasks, history, lines, tx, registry)
	a.reconcile = application.NewReconcileService(tasks, history, lines, tx, registry, opts...)
	return a, nil
}

// newRegistry 登记内置的简单匹配方法，均由外部匹配服务执行
func newRegistry(cfg *config.Config) (*application.Registry, error) {
	registry := application.NewRegistry()

	var client *matcher.Client
	if cfg.Reconcile.MatcherURL != "" {
		client = matcher.NewClient(cfg.Reconcile.MatcherURL, cfg.Reconcile.MatcherTimeoutDuration())
	}
	for _, c := range domain.SimpleMethods {
		name := domain.MethodName(c.Value)
		factory := unavailable(name)
		if client != nil {
			factory = client.Factory(name)
		}
		if err := registry.Register(name, c.Label, factory); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func unavailable(name domain.MethodName) domain.ReconcilerFactory {
	return func(context.Context, domain.RunParams) (domain.Reconciler, error) {
		return nil, fmt.Errorf("method %s: reconcile.matcher_url is not configured", name)
	}
}

func kafkaConfig(cfg *config.Config) mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
		MaxRetries:     cfg.Kafka.MaxRetries,
		RetryBackoff:   cfg.Kafka.RetryBackoff,
	}
}

func (a *app) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Error(ctx, "failed to close kafka producer", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Error(ctx, "failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := db.Close(a.db); err != nil {
			logger.Error(ctx, "failed to close database", "error", err)
		}
	}
}
