package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

// Conn — живое соединение пользователя.
type Conn interface {
	ID() string
	UserID() int64
	// Send ставит кадр в очередь отправки, не блокируя. false — кадр отброшен.
	Send(frame []byte) bool
	Close() error
}

type Members interface {
	ListMembers(ctx context.Context, chatID int64) ([]int64, error)
}

// Hub — реестр живых соединений: не более одного на пользователя,
// плюс набор чатов, за которыми соединение следит (presence/typing).
type Hub struct {
	mu       sync.RWMutex
	conns    map[int64]Conn
	watching map[int64]map[int64]struct{} // userID -> chatIDs
	watchers map[int64]map[int64]struct{} // chatID -> userIDs

	members Members
	metrics *metrics
}

type Option func(*Hub)

// WithRegisterer включает prometheus-метрики реестра.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(h *Hub) { h.metrics = newMetrics(reg) }
}

func New(members Members, opts ...Option) *Hub {
	h := &Hub{
		conns:    make(map[int64]Conn),
		watching: make(map[int64]map[int64]struct{}),
		watchers: make(map[int64]map[int64]struct{}),
		members:  members,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register сохраняет c как текущее соединение пользователя. Предыдущее
// соединение, если было, вытесняется и закрывается; оно же возвращается.
func (h *Hub) Register(c Conn) Conn {
	uid := c.UserID()

	h.mu.Lock()
	prev := h.conns[uid]
	if prev == c {
		h.mu.Unlock()
		return nil
	}
	h.conns[uid] = c
	if prev != nil {
		h.dropWatchesLocked(uid)
	}
	h.mu.Unlock()

	h.metrics.registered(prev != nil)
	if prev != nil {
		slog.Debug("hub: connection evicted", "user", uid, "old_conn", prev.ID(), "new_conn", c.ID())
		if err := prev.Close(); err != nil {
			slog.Debug("hub: close evicted conn", "user", uid, "err", err)
		}
	}
	return prev
}

// Unregister удаляет запись, только если сейчас зарегистрировано именно c:
// запоздалое закрытие старого соединения не должно выбить новое.
// Возвращает чаты, за которыми следило соединение.
func (h *Hub) Unregister(userID int64, c Conn) ([]int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cur, ok := h.conns[userID]
	if !ok || cur != c {
		return nil, false
	}
	delete(h.conns, userID)
	watched := h.dropWatchesLocked(userID)
	h.metrics.unregistered()

	return watched, true
}

func (h *Hub) Lookup(userID int64) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[userID]
	return c, ok
}

func (h *Hub) Online(userID int64) bool {
	_, ok := h.Lookup(userID)
	return ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

// SendTo отправляет событие одному пользователю, если он подключён.
func (h *Hub) SendTo(userID int64, v any) bool {
	c, ok := h.Lookup(userID)
	if !ok {
		return false
	}
	frame, err := json.Marshal(v)
	if err != nil {
		slog.Warn("hub: marshal event", "err", err)
		return false
	}
	sent := c.Send(frame)
	h.metrics.push(sent)

	return sent
}

// Broadcast рассылает событие всем подключённым участникам чата, кроме exclude.
// Ошибка возвращается только если не удалось получить состав чата или
// сериализовать событие; сбой доставки отдельному получателю не влияет на остальных.
func (h *Hub) Broadcast(ctx context.Context, chatID int64, v any, exclude ...int64) (int, error) {
	members, err := h.members.ListMembers(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("list members of chat %d: %w", chatID, err)
	}
	frame, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	targets := h.connsFor(lo.Without(members, exclude...))

	return h.push(targets, frame), nil
}

// BroadcastWatchers рассылает событие соединениям, подписанным на чат.
func (h *Hub) BroadcastWatchers(chatID int64, v any, exclude ...int64) int {
	frame, err := json.Marshal(v)
	if err != nil {
		slog.Warn("hub: marshal event", "err", err)
		return 0
	}

	return h.push(h.connsFor(lo.Without(h.Watchers(chatID), exclude...)), frame)
}

func (h *Hub) connsFor(userIDs []int64) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Conn, 0, len(userIDs))
	for _, uid := range lo.Uniq(userIDs) {
		if c, ok := h.conns[uid]; ok {
			out = append(out, c)
		}
	}
	return out
}

// отправка вне блокировки: Send не блокирует, но закрытие соединения может
func (h *Hub) push(targets []Conn, frame []byte) int {
	delivered := 0
	for _, c := range targets {
		ok := c.Send(frame)
		h.metrics.push(ok)
		if ok {
			delivered++
		}
	}
	h.metrics.recipients(delivered)

	return delivered
}

// Watch подписывает текущее соединение пользователя на чат.
// false, если c уже вытеснено или подписка существовала.
func (h *Hub) Watch(c Conn, chatID int64) bool {
	uid := c.UserID()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[uid] != c {
		return false
	}
	chats, ok := h.watching[uid]
	if !ok {
		chats = make(map[int64]struct{})
		h.watching[uid] = chats
	}
	if _, dup := chats[chatID]; dup {
		return false
	}
	chats[chatID] = struct{}{}

	users, ok := h.watchers[chatID]
	if !ok {
		users = make(map[int64]struct{})
		h.watchers[chatID] = users
	}
	users[uid] = struct{}{}

	return true
}

func (h *Hub) Unwatch(c Conn, chatID int64) bool {
	uid := c.UserID()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[uid] != c {
		return false
	}
	chats, ok := h.watching[uid]
	if !ok {
		return false
	}
	if _, ok := chats[chatID]; !ok {
		return false
	}
	delete(chats, chatID)
	if len(chats) == 0 {
		delete(h.watching, uid)
	}
	h.removeWatcherLocked(chatID, uid)

	return true
}

// Watchers — пользователи, чьи соединения подписаны на чат, по возрастанию id.
func (h *Hub) Watchers(chatID int64) []int64 {
	h.mu.RLock()
	out := lo.Keys(h.watchers[chatID])
	h.mu.RUnlock()

	slices.Sort(out)
	return out
}

func (h *Hub) Watching(userID int64) []int64 {
	h.mu.RLock()
	out := lo.Keys(h.watching[userID])
	h.mu.RUnlock()

	slices.Sort(out)
	return out
}

func (h *Hub) dropWatchesLocked(uid int64) []int64 {
	chats := h.watching[uid]
	delete(h.watching, uid)

	out := make([]int64, 0, len(chats))
	for chatID := range chats {
		h.removeWatcherLocked(chatID, uid)
		out = append(out, chatID)
	}
	slices.Sort(out)
	return out
}

func (h *Hub) removeWatcherLocked(chatID, uid int64) {
	if users, ok := h.watchers[chatID]; ok {
		delete(users, uid)
		if len(users) == 0 {
			delete(h.watchers, chatID)
		}
	}
}
