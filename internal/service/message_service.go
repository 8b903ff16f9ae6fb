package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/event"

	"github.com/samber/lo"
)

// MessageService: конвейер сообщений: проверка, сохранение, обогащение, рассылка.
type MessageService struct {
	*base
}

func (s *MessageService) Send(ctx context.Context, who domain.Identity, in SendInput) (*domain.MessageView, error) {
	if err := s.requireMember(ctx, in.ChatID, who.UserID); err != nil {
		return nil, err
	}
	if err := s.Limits.validateSend(&in); err != nil {
		return nil, err
	}

	var reply *domain.Message
	if in.ReplyToID > 0 {
		target, err := s.Messages.Get(ctx, in.ReplyToID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.ErrInvalidReply
		case err != nil:
			return nil, err
		case target.ChatID != in.ChatID:
			return nil, domain.ErrInvalidReply
		}
		reply = target
	}

	m := &domain.Message{
		ChatID:           in.ChatID,
		SenderID:         who.UserID,
		SenderName:       who.DisplayName,
		Content:          in.Content,
		Kind:             domain.DeriveKind(in.Content, in.ImageURL, in.FileURL),
		ImageURL:         in.ImageURL,
		OriginalImageURL: in.OriginalImageURL,
		FileURL:          in.FileURL,
		FileName:         in.FileName,
		FileSize:         in.FileSize,
		FileMime:         in.FileMime,
	}
	if reply != nil {
		m.ReplyToID = &reply.ID
	}

	saved, err := s.Messages.Create(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	// новое сообщение: реакций, прочтений, закрепления и пересылки ещё нет
	view := domain.MessageView{Message: *saved}
	if reply != nil {
		snap := reply.Snapshot()
		view.ReplyTo = &snap
	}

	s.publishAuthored(ctx, saved.ChatID, saved.SenderID, event.MessageEvent{
		Type:    event.TypeMessage,
		ChatID:  event.ID(saved.ChatID),
		Message: event.FromView(view),
	})

	return &view, nil
}

func (s *MessageService) Edit(ctx context.Context, who domain.Identity, messageID int64, p domain.MessagePatch) (*domain.MessageView, error) {
	cur, err := s.messageForMember(ctx, messageID, who.UserID)
	if err != nil {
		return nil, err
	}
	if cur.SenderID != who.UserID {
		return nil, domain.ErrNotOwner
	}
	if err := s.Limits.validatePatch(&p); err != nil {
		return nil, err
	}

	next := p.Apply(*cur)
	if next.Content == "" && next.ImageURL == "" && next.FileURL == "" {
		return nil, domain.ErrEmptyMessage
	}
	if next.ImageURL != "" && next.FileURL != "" {
		return nil, domain.ErrBothAttachments
	}
	if next.OriginalImageURL != "" && next.ImageURL == "" {
		return nil, fmt.Errorf("%w: original_image_url requires image_url", domain.ErrInvalidArgument)
	}
	now := s.Now()
	next.EditedAt = &now

	saved, orphans, err := s.Messages.Update(ctx, &next)
	if err != nil {
		return nil, err
	}
	s.purgeMedia(ctx, orphans)

	view, err := s.enr.view(ctx, who.UserID, *saved)
	if err != nil {
		// правка уже сохранена; отдаём без проекций
		slog.WarnContext(ctx, "edit: enrich", "message_id", saved.ID, "err", err)
		view = &domain.MessageView{Message: *saved}
	}

	s.publishAuthored(ctx, saved.ChatID, saved.SenderID, event.MessageEvent{
		Type:    event.TypeMessageEdited,
		ChatID:  event.ID(saved.ChatID),
		Message: event.FromView(*view),
	})

	return view, nil
}

// Delete удаляет сообщение. Удалять может отправитель, а также owner/admin чата.
// При двух одновременных удалениях второе получает NotFound, и медиа удаляются один раз.
func (s *MessageService) Delete(ctx context.Context, who domain.Identity, messageID int64) error {
	m, err := s.messageForMember(ctx, messageID, who.UserID)
	if err != nil {
		return err
	}
	if m.SenderID != who.UserID {
		role, err := s.Members.Role(ctx, m.ChatID, who.UserID)
		if err != nil {
			return fmt.Errorf("role check: %w", err)
		}
		if !role.CanModerate() {
			return domain.ErrNotOwner
		}
	}

	deleted, orphans, err := s.Messages.Delete(ctx, m.ID, m.SenderID)
	if err != nil {
		return err
	}
	s.purgeMedia(ctx, orphans)

	s.publish(ctx, deleted.ChatID, event.MessageDeleted{
		Type:      event.TypeMessageDeleted,
		ChatID:    event.ID(deleted.ChatID),
		MessageID: deleted.ID,
	})
	return nil
}

// Forward копирует сообщение в целевые чаты. Пересылающий обязан состоять
// в исходном чате; целевые чаты без его членства молча пропускаются.
func (s *MessageService) Forward(ctx context.Context, who domain.Identity, messageID int64, targets []int64) ([]domain.MessageView, error) {
	src, err := s.messageForMember(ctx, messageID, who.UserID)
	if err != nil {
		return nil, err
	}

	targets = lo.Uniq(lo.Filter(targets, func(id int64, _ int) bool { return id > 0 }))
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no target chats", domain.ErrInvalidArgument)
	}
	if len(targets) > s.Limits.MaxForwardTargets {
		return nil, fmt.Errorf("%w: %d targets, max %d", domain.ErrForwardLimit, len(targets), s.Limits.MaxForwardTargets)
	}

	eligible := make([]int64, 0, len(targets))
	for _, chatID := range targets {
		ok, err := s.Members.IsMember(ctx, chatID, who.UserID)
		if err != nil {
			return nil, fmt.Errorf("membership check: %w", err)
		}
		if !ok {
			slog.DebugContext(ctx, "forward: skip target, not a member", "chat_id", chatID, "user", who.UserID)
			continue
		}
		eligible = append(eligible, chatID)
	}
	if len(eligible) == 0 {
		return []domain.MessageView{}, nil
	}

	copies, err := s.Messages.Forward(ctx, src, who, eligible)
	if err != nil {
		return nil, fmt.Errorf("persist forward: %w", err)
	}

	out := make([]domain.MessageView, 0, len(copies))
	for _, c := range copies {
		v := domain.MessageView{
			Message: c,
			Forward: &domain.ForwardLink{
				MessageID:         c.ID,
				OriginalChatID:    src.ChatID,
				OriginalMessageID: src.ID,
				ForwardedBy:       who.UserID,
				CreatedAt:         c.CreatedAt,
			},
		}
		out = append(out, v)

		s.publishAuthored(ctx, c.ChatID, c.SenderID, event.MessageEvent{
			Type:    event.TypeMessage,
			ChatID:  event.ID(c.ChatID),
			Message: event.FromView(v),
		})
	}
	return out, nil
}

// ClearChat удаляет все сообщения чата; доступно owner и admin.
func (s *MessageService) ClearChat(ctx context.Context, who domain.Identity, chatID int64) (int, error) {
	if err := s.requireMember(ctx, chatID, who.UserID); err != nil {
		return 0, err
	}
	role, err := s.Members.Role(ctx, chatID, who.UserID)
	if err != nil {
		return 0, fmt.Errorf("role check: %w", err)
	}
	if !role.CanModerate() {
		return 0, domain.ErrNotModerator
	}

	n, orphans, err := s.Messages.DeleteByChat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	s.purgeMedia(ctx, orphans)

	s.publish(ctx, chatID, event.ChatCleared{
		Type:         event.TypeChatCleared,
		ChatID:       event.ID(chatID),
		UserID:       event.ID(who.UserID),
		DeletedCount: n,
	})
	return n, nil
}
