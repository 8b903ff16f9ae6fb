package domain

import "errors"

// Базовые виды ошибок. Конкретные ошибки оборачивают их через %w,
// транспорт сопоставляет код ответа по errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrLimitExceeded   = errors.New("limit exceeded")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")
)

var (
	ErrNotMember       = wrap(ErrForbidden, "user is not a member of the chat")
	ErrNotOwner        = wrap(ErrForbidden, "only the sender may modify the message")
	ErrNotModerator    = wrap(ErrForbidden, "owner or admin role required")
	ErrMessageNotFound = wrap(ErrNotFound, "message not found")
	ErrPinNotFound     = wrap(ErrNotFound, "message is not pinned")
	ErrPinLimit        = wrap(ErrLimitExceeded, "pinned messages limit reached")
	ErrForwardLimit    = wrap(ErrLimitExceeded, "too many forward targets")
	ErrEmptyMessage    = wrap(ErrInvalidArgument, "message has no content")
	ErrMessageTooLong  = wrap(ErrInvalidArgument, "message is too long")
	ErrBothAttachments = wrap(ErrInvalidArgument, "image and file attachments are mutually exclusive")
	ErrInvalidReply    = wrap(ErrInvalidArgument, "reply target must be a message of the same chat")
	ErrInvalidCursor   = wrap(ErrInvalidArgument, "invalid cursor")
	ErrInvalidReaction = wrap(ErrInvalidArgument, "invalid reaction")
	ErrInvalidToken    = wrap(ErrUnauthenticated, "invalid token")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Kind возвращает базовый вид ошибки или nil, если err не из таксономии.
func Kind(err error) error {
	for _, k := range []error{
		ErrUnauthenticated,
		ErrForbidden,
		ErrInvalidArgument,
		ErrNotFound,
		ErrLimitExceeded,
		ErrConflict,
		ErrUnavailable,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Code: короткий машиночитаемый код вида ошибки для клиентов.
func Code(err error) string {
	switch Kind(err) {
	case ErrUnauthenticated:
		return "unauthenticated"
	case ErrForbidden:
		return "forbidden"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrNotFound:
		return "not_found"
	case ErrLimitExceeded:
		return "limit_exceeded"
	case ErrConflict:
		return "conflict"
	case ErrUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}
