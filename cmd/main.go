package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/memstore"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/ratelimit"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/storage"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	limiterSweepEvery = time.Minute
	limiterIdleTTL    = 10 * time.Minute
	healthProbeEvery  = 10 * time.Second
)

// members: членство и блокировки; их реализуют и postgres, и memstore.
type members interface {
	service.Membership
	service.Moderation
}

type backend struct {
	messages  service.MessageStore
	receipts  service.ReceiptStore
	reactions service.ReactionStore
	pins      service.PinStore
	history   service.HistoryStore
	members   members
	ping      func(ctx context.Context) error
	close     func()
}

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- storage ---
	be, err := openBackend(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer be.close()

	media, err := openMedia(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	verifier, err := newVerifier(cfg.Auth.JWT)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	// --- metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// --- registry & services ---
	// при настроенном хранилище вложения принимаются только с его публичного адреса
	mediaBase := ""
	if cfg.Storage.Bucket != "" {
		mediaBase = cfg.Storage.PublicBaseURL
	}
	connHub := hub.New(be.members, hub.WithRegisterer(reg))
	svc := service.New(service.Deps{
		Messages:   be.messages,
		Receipts:   be.receipts,
		Reactions:  be.reactions,
		Pins:       be.pins,
		History:    be.history,
		Members:    be.members,
		Moderation: be.members,
		Storage:    media,
		Notifier:   connHub,
		Limits: service.Limits{
			MaxTextLen:          cfg.Chat.MaxTextLength,
			MaxURLLen:           cfg.Chat.MaxURLLength,
			MaxFileNameLen:      cfg.Chat.MaxFileNameLength,
			MaxPins:             cfg.Chat.MaxPinned,
			MaxForwardTargets:   cfg.Chat.MaxForwardTargets,
			DefaultPageSize:     cfg.Chat.DefaultPageSize,
			MaxPageSize:         cfg.Chat.MaxPageSize,
			MaxSearchPage:       cfg.Chat.MaxSearchPage,
			SnippetRadius:       cfg.Chat.SnippetRadius,
			ApplyBlocksOnFanout: cfg.Chat.ApplyBlocksOnFanout,
			MediaBaseURL:        mediaBase,
		},
	})
	presence := service.NewPresenceService(be.members, connHub)

	sendLimiter := ratelimit.New(cfg.HTTP.SendRatePerSec, cfg.HTTP.SendBurst)
	frameLimiter := ratelimit.New(cfg.WS.RatePerSec, cfg.WS.RateBurst)
	go sendLimiter.Run(ctx, limiterSweepEvery, limiterIdleTTL)
	go frameLimiter.Run(ctx, limiterSweepEvery, limiterIdleTTL)

	// --- WS ---
	wsServer := ws.NewServer(ws.Deps{
		Auth:       verifier,
		Registry:   connHub,
		Messages:   svc.Messages,
		Reads:      svc.Reads,
		Presence:   presence,
		Limiter:    frameLimiter,
		Registerer: reg,
	}, ws.Options{
		MaxFrameBytes:  cfg.WS.MaxFrameBytes(),
		PingInterval:   cfg.WS.PingInterval,
		WriteTimeout:   cfg.WS.WriteTimeout,
		SendBuffer:     cfg.WS.SendBuffer,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	})

	// --- HTTP ---
	router := httpx.NewRouter(httpx.NewHandler(svc), httpx.RouterOptions{
		Verifier:    verifier,
		WS:          wsServer.HandleWS,
		SendLimiter: sendLimiter,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Registerer:  reg,
		Gatherer:    reg,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// --- gRPC ---
	grpcSrv := grpcx.NewServer(grpcx.Options{})
	go grpcSrv.Watch(ctx, healthProbeEvery, be.ping)

	// --- run servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.GRPC.Addr != "" {
		go func() {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				errCh <- err
				return
			}
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	grpcSrv.GracefulStop()
	// Shutdown не ждёт hijacked WS-соединения; они закрываются вместе с процессом
	_ = httpSrv.Shutdown(ctxShutdown)
	stop()
	slog.Info("stopped", "live_connections", connHub.Len())
}

// openBackend поднимает Postgres; без DSN работает хранилище в памяти.
func openBackend(ctx context.Context, cfg config.Postgres) (*backend, error) {
	if cfg.DSN == "" {
		slog.Warn("postgres.dsn is empty, using in-memory store")
		st := memstore.New()
		return &backend{
			messages:  st,
			receipts:  st,
			reactions: st,
			pins:      st,
			history:   st,
			members:   st,
			ping:      func(context.Context) error { return nil },
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
		MaxConnIdleTime: cfg.MaxConnIdleTime,
		ApplicationName: cfg.ApplicationName,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("schema applied")
	}

	st := postgres.NewStore(pool)
	return &backend{
		messages:  st.Messages,
		receipts:  st.Receipts,
		reactions: st.Reactions,
		pins:      st.Pins,
		history:   st.History,
		members:   st.Members,
		ping:      func(ctx context.Context) error { return postgres.Ping(ctx, pool) },
		close:     pool.Close,
	}, nil
}

func openMedia(ctx context.Context, cfg config.Storage) (service.ObjectStorage, error) {
	if cfg.Bucket == "" {
		slog.Info("storage.bucket is empty, media deletion disabled")
		return storage.Noop{}, nil
	}
	return storage.NewS3(ctx, storage.Config{
		Endpoint:      cfg.Endpoint,
		Region:        cfg.Region,
		Bucket:        cfg.Bucket,
		AccessKey:     cfg.AccessKey,
		SecretKey:     cfg.SecretKey,
		PublicBaseURL: cfg.PublicBaseURL,
		PathStyle:     cfg.PathStyle,
	})
}

func newVerifier(cfg config.JWT) (*auth.Verifier, error) {
	opts := auth.Options{
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		ClockSkew: cfg.ClockSkew,
	}
	if cfg.Alg == "RS256" {
		pub, err := auth.LoadRSAPublicKeyFromPEM(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		return auth.NewRSAVerifier(pub, opts)
	}
	return auth.NewHMACVerifier([]byte(cfg.Secret), opts)
}
