package service

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/event"
)

// ReadService: отметки о прочтении.
type ReadService struct {
	*base
}

// MarkRead идемпотентно отмечает сообщение прочитанным. Отправитель получает
// message_read только при первом прочтении этим читателем.
// Свои сообщения не отмечаются: first=false, ошибки нет.
func (s *ReadService) MarkRead(ctx context.Context, who domain.Identity, messageID int64) (bool, error) {
	m, err := s.messageForMember(ctx, messageID, who.UserID)
	if err != nil {
		return false, err
	}
	if m.SenderID == who.UserID {
		return false, nil
	}

	now := s.Now()
	first, err := s.Receipts.MarkRead(ctx, m.ID, who.UserID, now)
	if err != nil {
		return false, fmt.Errorf("persist receipt: %w", err)
	}
	if first {
		s.notifyUser(m.SenderID, event.MessageRead{
			Type:      event.TypeMessageRead,
			ChatID:    event.ID(m.ChatID),
			MessageID: m.ID,
			ReaderID:  event.ID(who.UserID),
			ReadAt:    now,
		})
	}
	return first, nil
}

// MarkAllRead отмечает все непрочитанные чужие сообщения чата и шлёт
// по одному messages_read каждому затронутому отправителю.
func (s *ReadService) MarkAllRead(ctx context.Context, who domain.Identity, chatID int64) (int, error) {
	if err := s.requireMember(ctx, chatID, who.UserID); err != nil {
		return 0, err
	}

	now := s.Now()
	summaries, err := s.Receipts.MarkAllRead(ctx, chatID, who.UserID, now)
	if err != nil {
		return 0, fmt.Errorf("persist receipts: %w", err)
	}

	total := 0
	for _, sum := range summaries {
		total += len(sum.MessageIDs)
		s.notifyUser(sum.SenderID, event.MessagesRead{
			Type:       event.TypeMessagesRead,
			ChatID:     event.ID(chatID),
			ReaderID:   event.ID(who.UserID),
			ReadCount:  len(sum.MessageIDs),
			MessageIDs: sum.MessageIDs,
			ReadAt:     now,
		})
	}
	return total, nil
}
