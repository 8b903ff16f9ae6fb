package service

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/samber/lo"
)

// enricher собирает проекции состояния пакетно, по одному запросу на проекцию.
type enricher struct {
	messages  MessageStore
	receipts  ReceiptStore
	reactions ReactionStore
	pins      PinStore
}

func (e *enricher) views(ctx context.Context, viewerID int64, msgs []domain.Message) ([]domain.MessageView, error) {
	out := make([]domain.MessageView, 0, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}
	ids := lo.Map(msgs, func(m domain.Message, _ int) int64 { return m.ID })

	readAt, err := e.receipts.ReadTimes(ctx, viewerID, ids)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	reactions, err := e.reactions.ListFor(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("reactions: %w", err)
	}
	forwards, err := e.messages.Forwards(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("forwards: %w", err)
	}
	pinned, err := e.pins.PinnedAmong(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("pins: %w", err)
	}

	replyIDs := lo.Uniq(lo.FilterMap(msgs, func(m domain.Message, _ int) (int64, bool) {
		if m.ReplyToID == nil {
			return 0, false
		}
		return *m.ReplyToID, true
	}))
	replies := map[int64]domain.Message{}
	if len(replyIDs) > 0 {
		if replies, err = e.messages.GetMany(ctx, replyIDs); err != nil {
			return nil, fmt.Errorf("reply targets: %w", err)
		}
	}

	for _, m := range msgs {
		v := domain.MessageView{
			Message:   m,
			Reactions: reactions[m.ID],
			IsPinned:  pinned[m.ID],
		}
		if at, ok := readAt[m.ID]; ok {
			at := at
			v.IsRead = true
			v.ReadAt = &at
		}
		if f, ok := forwards[m.ID]; ok {
			f := f
			v.Forward = &f
		}
		if m.ReplyToID != nil {
			if r, ok := replies[*m.ReplyToID]; ok {
				snap := r.Snapshot()
				v.ReplyTo = &snap
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *enricher) view(ctx context.Context, viewerID int64, m domain.Message) (*domain.MessageView, error) {
	vs, err := e.views(ctx, viewerID, []domain.Message{m})
	if err != nil {
		return nil, err
	}
	return &vs[0], nil
}
