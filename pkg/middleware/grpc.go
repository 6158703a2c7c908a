package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// GRPCLogging 一元调用的 trace 注入与日志
func GRPCLogging() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		traceID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-trace-id"); len(v) > 0 {
				traceID = v[0]
			}
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = logger.ContextWithTrace(ctx, traceID, uuid.NewString())

		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug(ctx, "gRPC request completed",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}
