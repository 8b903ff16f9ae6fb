package domain

import "time"

type ReadReceipt struct {
	MessageID int64     `db:"message_id"`
	ReaderID  int64     `db:"reader_id"`
	ReadAt    time.Time `db:"read_at"`
}

// SenderReadSummary: итог массового прочтения по одному отправителю.
type SenderReadSummary struct {
	SenderID   int64
	MessageIDs []int64
}

type Reaction struct {
	MessageID int64     `db:"message_id"`
	UserID    int64     `db:"user_id"`
	Reaction  string    `db:"reaction"`
	CreatedAt time.Time `db:"created_at"`
}

type Pin struct {
	ChatID    int64     `db:"chat_id"`
	MessageID int64     `db:"message_id"`
	PinnedBy  int64     `db:"pinned_by"`
	PinnedAt  time.Time `db:"pinned_at"`
}

type ForwardLink struct {
	MessageID         int64     `db:"message_id"`
	OriginalChatID    int64     `db:"original_chat_id"`
	OriginalMessageID int64     `db:"original_message_id"`
	ForwardedBy       int64     `db:"forwarded_by"`
	CreatedAt         time.Time `db:"created_at"`
}

type Role string

const (
	RoleNone   Role = ""
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

func (r Role) CanModerate() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Identity: проверенная личность соединения или запроса.
type Identity struct {
	UserID      int64
	DisplayName string
}
