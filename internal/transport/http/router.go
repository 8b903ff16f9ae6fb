package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/chat-service/internal/ratelimit"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	Verifier    httpmw.Verifier
	WS          http.HandlerFunc
	SendLimiter *ratelimit.Pool
	CORSOrigins []string
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
	Timeout     time.Duration
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	metrics := httpmw.NewMetrics(opts.Registerer)

	r := chi.NewRouter()
	r.Use(httpmw.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.WithRequestLogger)
	r.Use(httpmw.RequestLogger)
	r.Use(middlewareChi.Recoverer)
	r.Use(metrics.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httpmw.HeaderRequestID},
		ExposedHeaders:   []string{httpmw.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WS: токен проверяется внутри до апгрейда
	if opts.WS != nil {
		r.Get("/ws", opts.WS)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(opts.Verifier))
		pr.Use(middlewareChi.Timeout(opts.Timeout))

		pr.Route("/messages", func(rm chi.Router) {
			rm.With(httpmw.RateLimit(opts.SendLimiter)).Post("/", h.SendMessage)

			rm.Route("/{messageID}", func(mr chi.Router) {
				mr.Put("/", h.EditMessage)
				mr.Delete("/", h.DeleteMessage)
				mr.Post("/read", h.MarkRead)
				mr.Post("/reactions", h.AddReaction)
				mr.Delete("/reactions", h.RemoveReaction)
				mr.Post("/pin", h.Pin)
				mr.Delete("/pin", h.Unpin)
				mr.Post("/forward", h.Forward)
			})
		})

		pr.Route("/chats/{chatID}", func(cr chi.Router) {
			cr.Get("/messages", h.History)
			cr.Delete("/messages", h.ClearChat)
			cr.Get("/messages/around/{messageID}", h.Around)
			cr.Get("/messages/search", h.Search)
			cr.Get("/pins", h.ListPinned)
			cr.Post("/read-all", h.MarkAllRead)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
