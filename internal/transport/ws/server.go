package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/ratelimit"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

type Authenticator interface {
	Verify(token string) (domain.Identity, error)
}

type Registry interface {
	Register(c hub.Conn) hub.Conn
	Unregister(userID int64, c hub.Conn) ([]int64, bool)
}

type MessageSender interface {
	Send(ctx context.Context, who domain.Identity, in service.SendInput) (*domain.MessageView, error)
}

type ReadMarker interface {
	MarkRead(ctx context.Context, who domain.Identity, messageID int64) (bool, error)
}

type Presence interface {
	Subscribe(ctx context.Context, c hub.Conn, chatID int64) error
	Unsubscribe(c hub.Conn, chatID int64) bool
	Typing(ctx context.Context, who domain.Identity, chatID int64, isTyping bool) error
	Disconnect(userID int64, watched []int64)
}

type Options struct {
	MaxFrameBytes  int64
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	AllowedOrigins []string // пусто: любой Origin
}

func (o Options) withDefaults() Options {
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 64 << 10
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

type Deps struct {
	Auth       Authenticator
	Registry   Registry
	Messages   MessageSender
	Reads      ReadMarker
	Presence   Presence
	Limiter    *ratelimit.Pool // nil: без ограничения
	Registerer prometheus.Registerer
}

type Server struct {
	upgrader websocket.Upgrader
	deps     Deps
	opts     Options
	metrics  *metrics
}

func NewServer(d Deps, opts Options) *Server {
	opts = opts.withDefaults()
	s := &Server{
		deps:    d,
		opts:    opts,
		metrics: newMetrics(d.Registerer),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || lo.Contains(s.opts.AllowedOrigins, origin)
}

// HandleWS: GET /ws?token=...
// Токен проверяется до апгрейда; без него соединение не открывается.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	who, err := s.deps.Auth.Verify(tokenFromRequest(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой
		slog.Warn("ws upgrade failed", "user", who.UserID, "err", err)
		return
	}

	c := newWsConn(conn, uuid.NewString(), who.UserID, s.opts.SendBuffer)
	log := logger.FromContext(r.Context()).With("conn_id", c.id, "user", who.UserID)
	ctx := logger.WithContext(r.Context(), log)

	s.deps.Registry.Register(c)
	log.Debug("ws connected")

	go c.writeLoop(s.opts.PingInterval, s.opts.WriteTimeout)
	s.readLoop(ctx, c, who)

	if watched, ok := s.deps.Registry.Unregister(who.UserID, c); ok {
		s.deps.Presence.Disconnect(who.UserID, watched)
	}
	if err := c.Close(); err != nil {
		log.Debug("ws close failed", "err", err)
	}
	log.Debug("ws disconnected")
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, who domain.Identity) {
	log := logger.FromContext(ctx)

	c.conn.SetReadLimit(s.opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				// gorilla уже отправил close 1009
				log.Warn("ws frame too large", "limit", humanize.IBytes(uint64(s.opts.MaxFrameBytes)))
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				log.Debug("ws read failed", "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
		s.dispatch(ctx, c, who, data)
	}
}

func tokenFromRequest(r *http.Request) string {
	q := r.URL.Query()
	if t := strings.TrimSpace(q.Get("token")); t != "" {
		return t
	}
	if t := strings.TrimSpace(q.Get("access_token")); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
