package event

import "time"

// Envelope: общий заголовок любого кадра.
type Envelope struct {
	Type string `json:"type"`
}

// --- входящие ---

type SendFrame struct {
	ChatID           ID     `json:"chat_id"`
	Content          string `json:"content"`
	ImageURL         string `json:"image_url"`
	OriginalImageURL string `json:"original_image_url"`
	FileURL          string `json:"file_url"`
	FileName         string `json:"file_name"`
	FileSize         int64  `json:"file_size"`
	FileMime         string `json:"file_mime"`
	ReplyToMessageID ID     `json:"reply_to_message_id"`
	ClientID         string `json:"client_id"`
}

type ChatFrame struct {
	ChatID ID `json:"chat_id"`
}

type TypingFrame struct {
	ChatID   ID   `json:"chat_id"`
	IsTyping bool `json:"is_typing"`
}

type MarkReadFrame struct {
	MessageID ID `json:"message_id"`
}

// --- исходящие ---

type MessageEvent struct {
	Type    string  `json:"type"`
	ChatID  ID      `json:"chat_id"`
	Message Message `json:"message"`
}

type MessageDeleted struct {
	Type      string `json:"type"`
	ChatID    ID     `json:"chat_id"`
	MessageID int64  `json:"message_id"`
}

type MessageRead struct {
	Type      string    `json:"type"`
	ChatID    ID        `json:"chat_id"`
	MessageID int64     `json:"message_id"`
	ReaderID  ID        `json:"reader_id"`
	ReadAt    time.Time `json:"read_at"`
}

type MessagesRead struct {
	Type       string    `json:"type"`
	ChatID     ID        `json:"chat_id"`
	ReaderID   ID        `json:"reader_id"`
	ReadCount  int       `json:"read_count"`
	MessageIDs []int64   `json:"message_ids"`
	ReadAt     time.Time `json:"read_at"`
}

type ReactionEvent struct {
	Type      string     `json:"type"`
	ChatID    ID         `json:"chat_id"`
	MessageID int64      `json:"message_id"`
	UserID    ID         `json:"user_id"`
	Reaction  string     `json:"reaction"`
	Reactions []Reaction `json:"reactions"`
}

type PinEvent struct {
	Type      string `json:"type"`
	ChatID    ID     `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	UserID    ID     `json:"user_id"`
}

type ChatCleared struct {
	Type         string `json:"type"`
	ChatID       ID     `json:"chat_id"`
	UserID       ID     `json:"user_id"`
	DeletedCount int    `json:"deleted_count"`
}

type Presence struct {
	Type   string `json:"type"`
	ChatID ID     `json:"chat_id"`
	UserID ID     `json:"user_id"`
	Status string `json:"status"`
}

type PresenceState struct {
	Type   string `json:"type"`
	ChatID ID     `json:"chat_id"`
	Online []ID   `json:"online"`
}

type Typing struct {
	Type        string `json:"type"`
	ChatID      ID     `json:"chat_id"`
	UserID      ID     `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsTyping    bool   `json:"is_typing"`
}

type Ack struct {
	Type      string `json:"type"`
	ClientID  string `json:"client_id"`
	ChatID    ID     `json:"chat_id"`
	MessageID int64  `json:"message_id"`
}

type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	// Ref: тип входящего кадра, вызвавшего ошибку.
	Ref string `json:"ref,omitempty"`
}
