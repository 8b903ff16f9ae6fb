package logger

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// instanceID: явный id, CHAT_INSTANCE_ID или host-pid-случайный суффикс.
func instanceID(v string) string {
	if v != "" {
		return v
	}
	if v = os.Getenv("CHAT_INSTANCE_ID"); v != "" {
		return v
	}

	hn, err := os.Hostname()
	if err != nil || hn == "" {
		hn = "chat"
	}
	return hn + "-" + strconv.Itoa(os.Getpid()) + "-" + uuid.NewString()[:8]
}

// processAttrs навешиваются на каждую запись процесса.
func processAttrs(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now().UTC()),
	}
}
