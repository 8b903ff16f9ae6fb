package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type Deps struct {
	Messages   MessageStore
	Receipts   ReceiptStore
	Reactions  ReactionStore
	Pins       PinStore
	History    HistoryStore
	Members    Membership
	Moderation Moderation
	Storage    ObjectStorage
	Notifier   Notifier
	Limits     Limits

	// Now по умолчанию time.Now; подменяется в тестах.
	Now func() time.Time
}

// Services: набор сервисов ядра поверх общих зависимостей.
type Services struct {
	Messages  *MessageService
	Reads     *ReadService
	Reactions *ReactionService
	Pins      *PinService
	History   *HistoryService
}

func New(d Deps) *Services {
	b := newBase(d)
	return &Services{
		Messages:  &MessageService{base: b},
		Reads:     &ReadService{base: b},
		Reactions: &ReactionService{base: b},
		Pins:      &PinService{base: b},
		History:   &HistoryService{base: b},
	}
}

type base struct {
	Deps
	enr *enricher
}

func newBase(d Deps) *base {
	d.Limits = d.Limits.withDefaults()
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Storage == nil {
		d.Storage = noopStorage{}
	}
	return &base{
		Deps: d,
		enr: &enricher{
			messages:  d.Messages,
			receipts:  d.Receipts,
			reactions: d.Reactions,
			pins:      d.Pins,
		},
	}
}

// requireMember: общий шлюз членства для всех операций над чатом.
func (b *base) requireMember(ctx context.Context, chatID, userID int64) error {
	ok, err := b.Members.IsMember(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return domain.ErrNotMember
	}
	return nil
}

// messageForMember загружает сообщение и проверяет членство в его чате.
func (b *base) messageForMember(ctx context.Context, messageID, userID int64) (*domain.Message, error) {
	if messageID <= 0 {
		return nil, domain.ErrMessageNotFound
	}
	m, err := b.Messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := b.requireMember(ctx, m.ChatID, userID); err != nil {
		return nil, err
	}
	return m, nil
}

// publish: best-effort рассылка после фиксации в хранилище.
// Ошибки только логируются: данные уже сохранены, клиенты догонят через историю.
func (b *base) publish(ctx context.Context, chatID int64, v any, exclude ...int64) {
	if b.Notifier == nil {
		return
	}
	if _, err := b.Notifier.Broadcast(ctx, chatID, v, exclude...); err != nil {
		slog.WarnContext(ctx, "fanout failed", "chat_id", chatID, "err", err)
	}
}

// publishAuthored рассылает событие с содержимым автора; при включённой
// фильтрации блокировок пропускает связанных с автором блокировкой.
func (b *base) publishAuthored(ctx context.Context, chatID, authorID int64, v any) {
	if !b.Limits.ApplyBlocksOnFanout || b.Moderation == nil {
		b.publish(ctx, chatID, v)
		return
	}
	members, err := b.Members.ListMembers(ctx, chatID)
	if err != nil {
		slog.WarnContext(ctx, "fanout: list members", "chat_id", chatID, "err", err)
		return
	}
	blocked, err := b.Moderation.BlockedAmong(ctx, authorID, members)
	if err != nil {
		slog.WarnContext(ctx, "fanout: block filter", "chat_id", chatID, "err", err)
		return
	}
	b.publish(ctx, chatID, v, blocked...)
}

func (b *base) notifyUser(userID int64, v any) {
	if b.Notifier == nil {
		return
	}
	b.Notifier.SendTo(userID, v)
}

// purgeMedia удаляет объекты, на которые больше не ссылается ни одно сообщение.
func (b *base) purgeMedia(ctx context.Context, urls []string) {
	for _, u := range urls {
		if err := b.Storage.Delete(ctx, u); err != nil {
			slog.WarnContext(ctx, "media delete failed", "url", u, "err", err)
		}
	}
}

type noopStorage struct{}

func (noopStorage) Delete(context.Context, string) error { return nil }
