package service

import (
	"context"
	"log/slog"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/event"
	"github.com/cwrk-planet/chat-service/internal/hub"

	"github.com/samber/lo"
)

// PresenceService: эфемерные presence/typing, только через реестр, без хранилища.
// Область рассылки: соединения, подписанные на чат.
type PresenceService struct {
	members  Membership
	registry Registry
}

func NewPresenceService(members Membership, registry Registry) *PresenceService {
	return &PresenceService{members: members, registry: registry}
}

// Subscribe подписывает соединение на чат, отправляет ему снимок онлайна
// и сообщает остальным подписчикам, что пользователь онлайн.
func (s *PresenceService) Subscribe(ctx context.Context, c hub.Conn, chatID int64) error {
	uid := c.UserID()
	if err := s.requireMember(ctx, chatID, uid); err != nil {
		return err
	}
	if !s.registry.Watch(c, chatID) {
		// повторная подписка или вытесненное соединение: только снимок
		s.sendState(c, chatID)
		return nil
	}

	s.sendState(c, chatID)
	s.registry.BroadcastWatchers(chatID, event.Presence{
		Type:   event.TypePresence,
		ChatID: event.ID(chatID),
		UserID: event.ID(uid),
		Status: event.StatusOnline,
	}, uid)
	return nil
}

// Unsubscribe снимает подписку без рассылки: пользователь остаётся онлайн.
func (s *PresenceService) Unsubscribe(c hub.Conn, chatID int64) bool {
	return s.registry.Unwatch(c, chatID)
}

func (s *PresenceService) Typing(ctx context.Context, who domain.Identity, chatID int64, isTyping bool) error {
	if err := s.requireMember(ctx, chatID, who.UserID); err != nil {
		return err
	}
	s.registry.BroadcastWatchers(chatID, event.Typing{
		Type:        event.TypeTyping,
		ChatID:      event.ID(chatID),
		UserID:      event.ID(who.UserID),
		DisplayName: who.DisplayName,
		IsTyping:    isTyping,
	}, who.UserID)
	return nil
}

// Disconnect рассылает offline в чаты, за которыми следило закрытое соединение.
func (s *PresenceService) Disconnect(userID int64, watched []int64) {
	for _, chatID := range watched {
		n := s.registry.BroadcastWatchers(chatID, event.Presence{
			Type:   event.TypePresence,
			ChatID: event.ID(chatID),
			UserID: event.ID(userID),
			Status: event.StatusOffline,
		}, userID)
		slog.Debug("presence offline", "user", userID, "chat_id", chatID, "recipients", n)
	}
}

func (s *PresenceService) sendState(c hub.Conn, chatID int64) {
	online := lo.Map(s.registry.Watchers(chatID), func(id int64, _ int) event.ID { return event.ID(id) })
	s.registry.SendTo(c.UserID(), event.PresenceState{
		Type:   event.TypePresenceState,
		ChatID: event.ID(chatID),
		Online: online,
	})
}

func (s *PresenceService) requireMember(ctx context.Context, chatID, userID int64) error {
	ok, err := s.members.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotMember
	}
	return nil
}
