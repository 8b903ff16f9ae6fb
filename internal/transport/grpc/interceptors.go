package grpcx

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCallTimeout = 10 * time.Second

// Unary logging + recovery + timeout guard (если у вызова нет deadline)
func UnaryServerInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		log := logger.FromContext(ctx).With(slog.String("method", info.FullMethod))
		ctx = logger.WithContext(ctx, log)

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc unary panic",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			err = mapErr(err)
			log.Log(ctx, levelFor(err), "grpc unary",
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()),
				slog.String("err", errString(err)))
		}()

		return handler(ctx, req)
	}
}

func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()
		log := logger.FromContext(ss.Context()).With(slog.String("method", info.FullMethod))

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc stream panic",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			err = mapErr(err)
			log.Log(ss.Context(), levelFor(err), "grpc stream",
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()),
				slog.String("err", errString(err)))
		}()

		return handler(srv, ss)
	}
}

// mapErr переводит доменные ошибки в gRPC-статусы; готовые статусы не трогает.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	switch domain.Kind(err) {
	case domain.ErrUnauthenticated:
		return status.Error(codes.Unauthenticated, err.Error())
	case domain.ErrForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	case domain.ErrInvalidArgument:
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.ErrNotFound:
		return status.Error(codes.NotFound, err.Error())
	case domain.ErrLimitExceeded:
		return status.Error(codes.ResourceExhausted, err.Error())
	case domain.ErrConflict:
		return status.Error(codes.AlreadyExists, err.Error())
	case domain.ErrUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

func levelFor(err error) slog.Level {
	switch status.Code(err) {
	case codes.OK:
		return slog.LevelInfo
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
