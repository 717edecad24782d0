package interceptors

import (
	"context"
	"time"

	"github.com/Keksclan/linkSquirrel/contextx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnary returns a unary server interceptor that writes one access log
// line per call. Server-side failures log at error level, caller mistakes at
// info.
func LoggingUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", contextx.RequestIDFromContext(ctx)),
		}
		if a, ok := contextx.ActorFromContext(ctx); ok {
			fields = append(fields, zap.String("actor", a.Subject))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		if ce := logger.Check(levelFor(code), "grpc request"); ce != nil {
			ce.Write(fields...)
		}
		return resp, err
	}
}

func levelFor(c codes.Code) zapcore.Level {
	switch c {
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable, codes.DeadlineExceeded:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
