package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/infrastructure/persistence/mysql"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/interfaces/consumer"
	httphandler "github.com/wyfcoding/easyreconcile/internal/easyreconcile/interfaces/http"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
	"github.com/wyfcoding/easyreconcile/pkg/middleware"
	"github.com/wyfcoding/easyreconcile/pkg/mq"
	"github.com/wyfcoding/easyreconcile/pkg/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, gRPC health service and run command consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run schema migration before serving")
	return cmd
}

func serve(ctx context.Context, opts *rootOptions, migrate bool) error {
	cfg := opts.cfg
	logger.Info(ctx, "starting easyreconcile",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if migrate {
		if err := mysql.Migrate(ctx, a.db); err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		a.metrics.StartHTTPServer(ctx, fmt.Sprintf(":%d", cfg.Metrics.Port), cfg.Metrics.Path)
	}

	httpServer := createHTTPServer(a)
	go func() {
		logger.Info(ctx, "starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcServer, err = startGRPCServer(ctx, a)
		if err != nil {
			return err
		}
	}

	if cfg.Reconcile.CommandTopic != "" && len(cfg.Kafka.Brokers) > 0 {
		startCommandConsumer(ctx, a)
	}

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down easyreconcile")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "HTTP server shutdown error", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	logger.Info(shutdownCtx, "easyreconcile stopped")
	return nil
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(a *app) *http.Server {
	cfg := a.cfg
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinLogging())
	router.Use(middleware.GinRecovery())
	router.Use(middleware.GinMetrics(a.metrics))

	var guards []gin.HandlerFunc
	if a.redis != nil && cfg.Reconcile.RunRatePerMinute > 0 {
		limiter := ratelimit.NewRunLimiter(a.redis.Client(), "easyreconcile:ratelimit:", cfg.Reconcile.RunRatePerMinute)
		guards = append(guards, middleware.RateLimit(limiter, runKey))
	}
	httphandler.NewHandler(a.tasks, a.reconcile, guards...).RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	return &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

// runKey 单任务运行按任务限流，批量运行按来源 IP
func runKey(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return "run:task:" + id
	}
	return "run:ip:" + c.ClientIP()
}

// startGRPCServer 仅注册标准健康检查服务
func startGRPCServer(ctx context.Context, a *app) (*grpc.Server, error) {
	addr := a.cfg.GRPC.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on gRPC address: %w", err)
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(middleware.GRPCLogging()))
	hs := health.NewServer()
	hs.SetServingStatus(a.cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)

	go func() {
		logger.Info(ctx, "starting gRPC server", "addr", addr)
		if err := server.Serve(lis); err != nil {
			logger.Error(ctx, "gRPC server error", "error", err)
		}
	}()
	return server, nil
}

// startCommandConsumer 消费运行指令，处理失败的消息转入 <topic>.dlq
func startCommandConsumer(ctx context.Context, a *app) {
	topic := a.cfg.Reconcile.CommandTopic
	c := mq.NewConsumer(kafkaConfig(a.cfg), topic)
	if a.producer != nil {
		c.WithDeadLetterQueue(mq.NewDeadLetterQueue(a.producer, topic+".dlq"))
	}
	handler := consumer.NewRunCommandHandler(a.reconcile)

	go func() {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Error(context.Background(), "failed to close kafka consumer", "error", err)
			}
		}()
		if err := c.Consume(ctx, handler.Handle); err != nil {
			logger.Error(ctx, "run command consumer stopped", "topic", topic, "error", err)
		}
	}()
}
