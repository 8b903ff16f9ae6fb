package service

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/event"
)

type ReactionService struct {
	*base
}

// Add: upsert реакции; повтор того же токена обновляет только время.
// Возвращает полный список реакций сообщения.
func (s *ReactionService) Add(ctx context.Context, who domain.Identity, messageID int64, reaction string) ([]domain.Reaction, error) {
	m, err := s.messageForMember(ctx, messageID, who.UserID)
	if err != nil {
		return nil, err
	}
	reaction, err = s.Limits.normalizeReaction(reaction)
	if err != nil {
		return nil, err
	}

	if err := s.Reactions.Add(ctx, domain.Reaction{
		MessageID: m.ID,
		UserID:    who.UserID,
		Reaction:  reaction,
		CreatedAt: s.Now(),
	}); err != nil {
		return nil, fmt.Errorf("persist reaction: %w", err)
	}

	list, err := s.list(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, m.ChatID, event.ReactionEvent{
		Type:      event.TypeReactionAdded,
		ChatID:    event.ID(m.ChatID),
		MessageID: m.ID,
		UserID:    event.ID(who.UserID),
		Reaction:  reaction,
		Reactions: event.Reactions(list),
	})
	return list, nil
}

// Remove идемпотентно: событие рассылается, только если реакция действительно была.
func (s *ReactionService) Remove(ctx context.Context, who domain.Identity, messageID int64, reaction string) ([]domain.Reaction, error) {
	m, err := s.messageForMember(ctx, messageID, who.UserID)
	if err != nil {
		return nil, err
	}
	reaction, err = s.Limits.normalizeReaction(reaction)
	if err != nil {
		return nil, err
	}

	removed, err := s.Reactions.Remove(ctx, m.ID, who.UserID, reaction)
	if err != nil {
		return nil, fmt.Errorf("remove reaction: %w", err)
	}

	list, err := s.list(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if removed {
		s.publish(ctx, m.ChatID, event.ReactionEvent{
			Type:      event.TypeReactionRemoved,
			ChatID:    event.ID(m.ChatID),
			MessageID: m.ID,
			UserID:    event.ID(who.UserID),
			Reaction:  reaction,
			Reactions: event.Reactions(list),
		})
	}
	return list, nil
}

func (s *ReactionService) list(ctx context.Context, messageID int64) ([]domain.Reaction, error) {
	byMsg, err := s.Reactions.ListFor(ctx, []int64{messageID})
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	if list := byMsg[messageID]; list != nil {
		return list, nil
	}
	return []domain.Reaction{}, nil
}
