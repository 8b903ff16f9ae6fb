package grpcx

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName: имя сервиса в health-протоколе.
const ServiceName = "chat.v1.ChatService"

type Options struct {
	CallTimeout time.Duration
}

// Server: внутренний gRPC-эндпоинт: health и reflection за общими интерсепторами.
type Server struct {
	srv    *grpc.Server
	health *health.Server
}

func NewServer(opts Options) *Server {
	s := &Server{
		srv: grpc.NewServer(
			grpc.ChainUnaryInterceptor(UnaryServerInterceptor(opts.CallTimeout)),
			grpc.ChainStreamInterceptor(StreamServerInterceptor()),
		),
		health: health.NewServer(),
	}

	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)

	s.SetServing(false)
	return s
}

// GRPC отдаёт нижележащий сервер для регистрации дополнительных сервисов.
func (s *Server) GRPC() *grpc.Server { return s.srv }

func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Watch периодически выполняет check и переключает статус здоровья.
// Блокирует до отмены ctx.
func (s *Server) Watch(ctx context.Context, every time.Duration, check func(context.Context) error) {
	probe := func() {
		err := check(ctx)
		if err != nil && ctx.Err() == nil {
			slog.WarnContext(ctx, "health check failed", slog.Any("err", err))
		}
		s.SetServing(err == nil)
	}

	probe()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			probe()
		}
	}
}

func (s *Server) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// GracefulStop сначала объявляет NOT_SERVING, затем дожидается активных вызовов.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
