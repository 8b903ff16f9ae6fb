package event

// Входящие типы кадров.
const (
	TypeSend        = "send"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeTyping      = "typing"
	TypeMarkRead    = "mark_read"
)

// Исходящие типы событий.
const (
	TypeMessage         = "message"
	TypeMessageEdited   = "message_edited"
	TypeMessageDeleted  = "message_deleted"
	TypeMessageRead     = "message_read"
	TypeMessagesRead    = "messages_read"
	TypeReactionAdded   = "reaction_added"
	TypeReactionRemoved = "reaction_removed"
	TypeMessagePinned   = "message_pinned"
	TypeMessageUnpinned = "message_unpinned"
	TypeChatCleared     = "chat_cleared"
	TypePresence        = "presence"
	TypePresenceState   = "presence_state"
	TypeAck             = "ack"
	TypeError           = "error"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)
