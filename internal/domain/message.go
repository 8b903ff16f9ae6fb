package domain

import "time"

type MessageKind string

const (
	KindText      MessageKind = "text"
	KindImage     MessageKind = "image"
	KindFile      MessageKind = "file"
	KindTextImage MessageKind = "text_image"
	KindTextFile  MessageKind = "text_file"
)

type Message struct {
	ID         int64       `db:"id"`
	ChatID     int64       `db:"chat_id"`
	SenderID   int64       `db:"sender_id"`
	SenderName string      `db:"sender_name"`
	Content    string      `db:"content"`
	Kind       MessageKind `db:"message_type"`

	ImageURL         string `db:"image_url"`
	OriginalImageURL string `db:"original_image_url"`
	FileURL          string `db:"file_url"`
	FileName         string `db:"file_name"`
	FileSize         int64  `db:"file_size"`
	FileMime         string `db:"file_mime"`

	ReplyToID   *int64     `db:"reply_to_id"`
	CreatedAt   time.Time  `db:"created_at"`
	DeliveredAt time.Time  `db:"delivered_at"`
	EditedAt    *time.Time `db:"edited_at"`
}

// DeriveKind выводит вариант содержимого из заполненных полей.
func DeriveKind(content, imageURL, fileURL string) MessageKind {
	switch {
	case imageURL != "" && content != "":
		return KindTextImage
	case imageURL != "":
		return KindImage
	case fileURL != "" && content != "":
		return KindTextFile
	case fileURL != "":
		return KindFile
	default:
		return KindText
	}
}

// MediaURLs: все ссылки на объекты хранилища, принадлежащие сообщению.
func (m *Message) MediaURLs() []string {
	var out []string
	for _, u := range []string{m.ImageURL, m.OriginalImageURL, m.FileURL} {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// ReplySnapshot: срез сообщения, на которое отвечают.
type ReplySnapshot struct {
	ID         int64
	Content    string
	ImageURL   string
	Kind       MessageKind
	SenderID   int64
	SenderName string
}

func (m *Message) Snapshot() ReplySnapshot {
	return ReplySnapshot{
		ID:         m.ID,
		Content:    m.Content,
		ImageURL:   m.ImageURL,
		Kind:       m.Kind,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
	}
}

// MessageView: сообщение вместе с проекциями состояния для конкретного читателя.
type MessageView struct {
	Message

	IsRead    bool
	ReadAt    *time.Time
	ReplyTo   *ReplySnapshot
	Reactions []Reaction
	Forward   *ForwardLink
	IsPinned  bool
}

// MessagePatch: правка сообщения. nil-поля оставляют значение как есть,
// пустая строка удаляет вложение.
type MessagePatch struct {
	Content          *string
	ImageURL         *string
	OriginalImageURL *string
}

func (p MessagePatch) Apply(m Message) Message {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.ImageURL != nil {
		m.ImageURL = *p.ImageURL
		if *p.ImageURL == "" {
			m.OriginalImageURL = ""
		}
	}
	if p.OriginalImageURL != nil {
		m.OriginalImageURL = *p.OriginalImageURL
	}
	m.Kind = DeriveKind(m.Content, m.ImageURL, m.FileURL)
	return m
}
