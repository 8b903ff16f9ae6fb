package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/event"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

var knownFrames = map[string]bool{
	event.TypeSend:        true,
	event.TypeSubscribe:   true,
	event.TypeUnsubscribe: true,
	event.TypeTyping:      true,
	event.TypeMarkRead:    true,
}

// dispatch обрабатывает один входящий кадр. Ошибки возвращаются клиенту
// кадром error и соединение не рвут.
func (s *Server) dispatch(ctx context.Context, c *wsConn, who domain.Identity, data []byte) {
	var env event.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.reject(ctx, c, "", fmt.Errorf("%w: malformed frame", domain.ErrInvalidArgument))
		return
	}

	label := env.Type
	if !knownFrames[label] {
		label = "unknown"
	}
	s.metrics.frame(label)

	limited := env.Type == event.TypeSend || env.Type == event.TypeTyping
	if limited && s.deps.Limiter != nil && !s.deps.Limiter.Allow(who.UserID) {
		s.reject(ctx, c, env.Type, fmt.Errorf("%w: too many frames", domain.ErrLimitExceeded))
		return
	}

	var err error
	switch env.Type {
	case event.TypeSend:
		err = s.handleSend(ctx, c, who, data)
	case event.TypeSubscribe:
		var f event.ChatFrame
		if err = decodeFrame(data, &f); err == nil {
			err = s.deps.Presence.Subscribe(ctx, c, f.ChatID.Int64())
		}
	case event.TypeUnsubscribe:
		var f event.ChatFrame
		if err = decodeFrame(data, &f); err == nil {
			s.deps.Presence.Unsubscribe(c, f.ChatID.Int64())
		}
	case event.TypeTyping:
		var f event.TypingFrame
		if err = decodeFrame(data, &f); err == nil {
			err = s.deps.Presence.Typing(ctx, who, f.ChatID.Int64(), f.IsTyping)
		}
	case event.TypeMarkRead:
		var f event.MarkReadFrame
		if err = decodeFrame(data, &f); err == nil {
			_, err = s.deps.Reads.MarkRead(ctx, who, f.MessageID.Int64())
		}
	default:
		err = fmt.Errorf("%w: unknown frame type %q", domain.ErrInvalidArgument, env.Type)
	}
	if err != nil {
		s.reject(ctx, c, env.Type, err)
	}
}

func (s *Server) handleSend(ctx context.Context, c *wsConn, who domain.Identity, data []byte) error {
	var f event.SendFrame
	if err := decodeFrame(data, &f); err != nil {
		return err
	}

	view, err := s.deps.Messages.Send(ctx, who, service.SendInput{
		ChatID:           f.ChatID.Int64(),
		Content:          f.Content,
		ImageURL:         f.ImageURL,
		OriginalImageURL: f.OriginalImageURL,
		FileURL:          f.FileURL,
		FileName:         f.FileName,
		FileSize:         f.FileSize,
		FileMime:         f.FileMime,
		ReplyToID:        f.ReplyToMessageID.Int64(),
	})
	if err != nil {
		return err
	}

	// ack только отправителю, чтобы клиент снял pending по client_id
	s.push(ctx, c, event.Ack{
		Type:      event.TypeAck,
		ClientID:  f.ClientID,
		ChatID:    event.ID(view.ChatID),
		MessageID: view.ID,
	})
	return nil
}

func (s *Server) reject(ctx context.Context, c *wsConn, ref string, err error) {
	code := domain.Code(err)
	msg := err.Error()
	if code == "internal" {
		logger.FromContext(ctx).Error("ws frame failed", "ref", ref, "err", err)
		msg = "internal error"
	} else {
		logger.FromContext(ctx).Debug("ws frame rejected", "ref", ref, "code", code, "err", err)
	}
	s.metrics.error(code)

	s.push(ctx, c, event.Error{
		Type:    event.TypeError,
		Code:    code,
		Message: msg,
		Ref:     ref,
	})
}

func (s *Server) push(ctx context.Context, c *wsConn, v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		logger.FromContext(ctx).Error("ws marshal failed", "err", err)
		return
	}
	if !c.Send(frame) {
		logger.FromContext(ctx).Debug("ws frame dropped")
	}
}

func decodeFrame(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}
