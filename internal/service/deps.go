package service

import (
	"context"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/hub"
)

type MessageStore interface {
	// Create присваивает id, created_at и delivered_at.
	Create(ctx context.Context, m *domain.Message) (*domain.Message, error)
	Get(ctx context.Context, id int64) (*domain.Message, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]domain.Message, error)
	// Update сохраняет новое содержимое сообщения отправителя (m.ID, m.SenderID)
	// и возвращает ссылки на медиа, на которые больше никто не ссылается.
	Update(ctx context.Context, m *domain.Message) (*domain.Message, []string, error)
	// Delete удаляет сообщение отправителя. Если строки уже нет: ErrMessageNotFound.
	Delete(ctx context.Context, id, senderID int64) (*domain.Message, []string, error)
	DeleteByChat(ctx context.Context, chatID int64) (int, []string, error)
	// Forward в одной транзакции создаёт копии src в каждом целевом чате и ссылки на оригинал.
	Forward(ctx context.Context, src *domain.Message, by domain.Identity, targets []int64) ([]domain.Message, error)
	Forwards(ctx context.Context, ids []int64) (map[int64]domain.ForwardLink, error)
}

type ReceiptStore interface {
	// MarkRead: upsert; first=true, если строка создана впервые.
	MarkRead(ctx context.Context, messageID, readerID int64, at time.Time) (first bool, err error)
	// MarkAllRead отмечает все непрочитанные читателем чужие сообщения чата.
	MarkAllRead(ctx context.Context, chatID, readerID int64, at time.Time) ([]domain.SenderReadSummary, error)
	ReadTimes(ctx context.Context, readerID int64, ids []int64) (map[int64]time.Time, error)
}

type ReactionStore interface {
	Add(ctx context.Context, r domain.Reaction) error
	// Remove возвращает false, если такой реакции не было.
	Remove(ctx context.Context, messageID, userID int64, reaction string) (bool, error)
	ListFor(ctx context.Context, ids []int64) (map[int64][]domain.Reaction, error)
}

type PinStore interface {
	// Pin соблюдает потолок max на уровне хранилища; повторное закрепление: не ошибка.
	Pin(ctx context.Context, p domain.Pin, max int) (created bool, err error)
	Unpin(ctx context.Context, chatID, messageID int64) (bool, error)
	List(ctx context.Context, chatID int64) ([]domain.Pin, error)
	PinnedAmong(ctx context.Context, ids []int64) (map[int64]bool, error)
}

// HistoryStore: чтение истории. Все методы скрывают сообщения авторов,
// заблокированных viewerID.
type HistoryStore interface {
	CountVisible(ctx context.Context, chatID, viewerID int64) (int, error)
	// ListRange: по возрастанию id, начиная с offset.
	ListRange(ctx context.Context, chatID, viewerID int64, offset, limit int) ([]domain.Message, error)
	// ListBefore: id < beforeID, по убыванию id.
	ListBefore(ctx context.Context, chatID, viewerID, beforeID int64, limit int) ([]domain.Message, error)
	// ListFrom: id >= fromID, по возрастанию id.
	ListFrom(ctx context.Context, chatID, viewerID, fromID int64, limit int) ([]domain.Message, error)
	// Search: регистронезависимая подстрока, id < beforeID (0: без границы), по убыванию id.
	Search(ctx context.Context, chatID, viewerID int64, query string, beforeID int64, limit int) ([]domain.Message, error)
}

type Membership interface {
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
	ListMembers(ctx context.Context, chatID int64) ([]int64, error)
	Role(ctx context.Context, chatID, userID int64) (domain.Role, error)
}

type Moderation interface {
	IsBlocked(ctx context.Context, viewerID, authorID int64) (bool, error)
	// BlockedAmong: те из userIDs, кто заблокировал authorID или заблокирован им.
	BlockedAmong(ctx context.Context, authorID int64, userIDs []int64) ([]int64, error)
}

type ObjectStorage interface {
	Delete(ctx context.Context, mediaURL string) error
}

// Notifier: канал best-effort доставки живым соединениям.
type Notifier interface {
	Broadcast(ctx context.Context, chatID int64, v any, exclude ...int64) (int, error)
	SendTo(userID int64, v any) bool
}

// Registry: подписки живых соединений на чаты.
type Registry interface {
	Watch(c hub.Conn, chatID int64) bool
	Unwatch(c hub.Conn, chatID int64) bool
	Watchers(chatID int64) []int64
	BroadcastWatchers(chatID int64, v any, exclude ...int64) int
	SendTo(userID int64, v any) bool
}
