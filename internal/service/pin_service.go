package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/event"

	"github.com/samber/lo"
)

type PinService struct {
	*base
}

type PinnedMessage struct {
	View     domain.MessageView
	PinnedBy int64
	PinnedAt time.Time
}

// Pin закрепляет сообщение в его чате. Повторное закрепление: успех без события.
// Потолок закреплений проверяется хранилищем атомарно.
func (s *PinService) Pin(ctx context.Context, who domain.Identity, messageID int64) error {
	m, err := s.messageForMember(ctx, messageID, who.UserID)
	if err != nil {
		return err
	}

	created, err := s.Pins.Pin(ctx, domain.Pin{
		ChatID:    m.ChatID,
		MessageID: m.ID,
		PinnedBy:  who.UserID,
		PinnedAt:  s.Now(),
	}, s.Limits.MaxPins)
	if err != nil {
		return err
	}
	if created {
		s.publish(ctx, m.ChatID, event.PinEvent{
			Type:      event.TypeMessagePinned,
			ChatID:    event.ID(m.ChatID),
			MessageID: m.ID,
			UserID:    event.ID(who.UserID),
		})
	}
	return nil
}

// Unpin снимает закрепление безусловно; отсутствие закрепления: не ошибка.
func (s *PinService) Unpin(ctx context.Context, who domain.Identity, messageID int64) error {
	m, err := s.messageForMember(ctx, messageID, who.UserID)
	if err != nil {
		return err
	}

	removed, err := s.Pins.Unpin(ctx, m.ChatID, m.ID)
	if err != nil {
		return fmt.Errorf("unpin: %w", err)
	}
	if removed {
		s.publish(ctx, m.ChatID, event.PinEvent{
			Type:      event.TypeMessageUnpinned,
			ChatID:    event.ID(m.ChatID),
			MessageID: m.ID,
			UserID:    event.ID(who.UserID),
		})
	}
	return nil
}

// List: закреплённые сообщения чата, последние закреплённые первыми.
func (s *PinService) List(ctx context.Context, who domain.Identity, chatID int64) ([]PinnedMessage, error) {
	if err := s.requireMember(ctx, chatID, who.UserID); err != nil {
		return nil, err
	}
	pins, err := s.Pins.List(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	sort.SliceStable(pins, func(i, j int) bool { return pins[i].PinnedAt.After(pins[j].PinnedAt) })

	byID, err := s.Messages.GetMany(ctx, lo.Map(pins, func(p domain.Pin, _ int) int64 { return p.MessageID }))
	if err != nil {
		return nil, fmt.Errorf("pinned messages: %w", err)
	}
	msgs := make([]domain.Message, 0, len(pins))
	kept := make([]domain.Pin, 0, len(pins))
	for _, p := range pins {
		if m, ok := byID[p.MessageID]; ok {
			msgs = append(msgs, m)
			kept = append(kept, p)
		}
	}

	views, err := s.enr.views(ctx, who.UserID, msgs)
	if err != nil {
		return nil, err
	}
	out := make([]PinnedMessage, 0, len(views))
	for i, v := range views {
		out = append(out, PinnedMessage{View: v, PinnedBy: kept[i].PinnedBy, PinnedAt: kept[i].PinnedAt})
	}
	return out, nil
}
