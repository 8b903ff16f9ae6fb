package event

import (
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/samber/lo"
)

// Message: единое представление сообщения для REST и push.
// Скалярные поля никогда не null; null допустим только у edited_at/read_at
// и у вложенных reply_to_message/forwarded_from.
type Message struct {
	ID          int64  `json:"id"`
	ChatID      ID     `json:"chat_id"`
	UserID      ID     `json:"user_id"`
	SenderName  string `json:"sender_name"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`

	ImageURL         string `json:"image_url"`
	OriginalImageURL string `json:"original_image_url"`
	FileURL          string `json:"file_url"`
	FileName         string `json:"file_name"`
	FileSize         int64  `json:"file_size"`
	FileMime         string `json:"file_mime"`

	ReplyToMessageID *int64 `json:"reply_to_message_id"`
	ReplyToMessage   *Reply `json:"reply_to_message"`

	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt time.Time  `json:"delivered_at"`
	EditedAt    *time.Time `json:"edited_at"`
	IsEdited    bool       `json:"is_edited"`

	IsRead bool       `json:"is_read"`
	ReadAt *time.Time `json:"read_at"`

	Reactions     []Reaction `json:"reactions"`
	IsForwarded   bool       `json:"is_forwarded"`
	ForwardedFrom *Forward   `json:"forwarded_from"`
	IsPinned      bool       `json:"is_pinned"`
}

type Reply struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	ImageURL    string `json:"image_url"`
	MessageType string `json:"message_type"`
	UserID      ID     `json:"user_id"`
	SenderName  string `json:"sender_name"`
}

type Reaction struct {
	UserID    ID        `json:"user_id"`
	Reaction  string    `json:"reaction"`
	CreatedAt time.Time `json:"created_at"`
}

type Forward struct {
	OriginalChatID    ID    `json:"original_chat_id"`
	OriginalMessageID int64 `json:"original_message_id"`
	ForwardedBy       ID    `json:"forwarded_by"`
}

func FromView(v domain.MessageView) Message {
	m := Message{
		ID:               v.ID,
		ChatID:           ID(v.ChatID),
		UserID:           ID(v.SenderID),
		SenderName:       v.SenderName,
		Content:          v.Content,
		MessageType:      string(v.Kind),
		ImageURL:         v.ImageURL,
		OriginalImageURL: v.OriginalImageURL,
		FileURL:          v.FileURL,
		FileName:         v.FileName,
		FileSize:         v.FileSize,
		FileMime:         v.FileMime,
		ReplyToMessageID: v.ReplyToID,
		CreatedAt:        v.CreatedAt,
		DeliveredAt:      v.DeliveredAt,
		EditedAt:         v.EditedAt,
		IsEdited:         v.EditedAt != nil,
		IsRead:           v.IsRead,
		ReadAt:           v.ReadAt,
		Reactions:        Reactions(v.Reactions),
		IsPinned:         v.IsPinned,
	}
	if m.MessageType == "" {
		m.MessageType = string(domain.KindText)
	}
	if v.ReplyTo != nil {
		m.ReplyToMessage = &Reply{
			ID:          v.ReplyTo.ID,
			Content:     v.ReplyTo.Content,
			ImageURL:    v.ReplyTo.ImageURL,
			MessageType: string(v.ReplyTo.Kind),
			UserID:      ID(v.ReplyTo.SenderID),
			SenderName:  v.ReplyTo.SenderName,
		}
	}
	if v.Forward != nil {
		m.IsForwarded = true
		m.ForwardedFrom = &Forward{
			OriginalChatID:    ID(v.Forward.OriginalChatID),
			OriginalMessageID: v.Forward.OriginalMessageID,
			ForwardedBy:       ID(v.Forward.ForwardedBy),
		}
	}
	return m
}

func FromViews(vs []domain.MessageView) []Message {
	return lo.Map(vs, func(v domain.MessageView, _ int) Message { return FromView(v) })
}

// Reactions всегда возвращает непустой слайс, чтобы в JSON был [] а не null.
func Reactions(rs []domain.Reaction) []Reaction {
	out := make([]Reaction, 0, len(rs))
	for _, r := range rs {
		out = append(out, Reaction{
			UserID:    ID(r.UserID),
			Reaction:  r.Reaction,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}
