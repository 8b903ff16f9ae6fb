package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/event"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type SendMessageRequest struct {
	ChatID           event.ID `json:"chat_id" validate:"required,gt=0"`
	Content          string   `json:"content"`
	ImageURL         string   `json:"image_url" validate:"omitempty,url"`
	OriginalImageURL string   `json:"original_image_url" validate:"omitempty,url"`
	FileURL          string   `json:"file_url" validate:"omitempty,url"`
	FileName         string   `json:"file_name"`
	FileSize         int64    `json:"file_size" validate:"gte=0"`
	FileMime         string   `json:"file_mime"`
	ReplyToMessageID event.ID `json:"reply_to_message_id" validate:"gte=0"`
}

type EditMessageRequest struct {
	Content          *string `json:"content"`
	ImageURL         *string `json:"image_url"`
	OriginalImageURL *string `json:"original_image_url"`
}

type ReactionRequest struct {
	Reaction string `json:"reaction" validate:"required"`
}

type ForwardRequest struct {
	ChatIDs []event.ID `json:"chat_ids" validate:"required,min=1,dive,gt=0"`
}

// bindJSON декодирует тело с лимитом размера и прогоняет validator-теги.
func bindJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return invalid("request body too large")
		case errors.Is(err, io.EOF):
			return invalid("empty request body")
		default:
			return invalid("invalid json")
		}
	}
	if err := validate.Struct(dst); err != nil {
		return invalid(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// --- ответы ---

type Pagination struct {
	HasMore         bool  `json:"has_more"`
	TotalCount      int   `json:"total_count"`
	Limit           int   `json:"limit"`
	Offset          int   `json:"offset"`
	OldestMessageID int64 `json:"oldest_message_id"`
}

type HistoryResponse struct {
	Messages   []event.Message `json:"messages"`
	Pagination Pagination      `json:"pagination"`
}

type AroundResponse struct {
	Messages        []event.Message `json:"messages"`
	TargetMessageID int64           `json:"target_message_id"`
	HasOlder        bool            `json:"has_older"`
	HasNewer        bool            `json:"has_newer"`
}

type SearchItem struct {
	Message event.Message `json:"message"`
	Snippet string        `json:"snippet"`
}

type SearchResponse struct {
	Results    []SearchItem `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type PinnedItem struct {
	Message  event.Message `json:"message"`
	PinnedBy event.ID      `json:"pinned_by"`
	PinnedAt time.Time     `json:"pinned_at"`
}

type PinnedResponse struct {
	Pinned []PinnedItem `json:"pinned"`
}

type MessagesResponse struct {
	Messages []event.Message `json:"messages"`
}

type ReactionsResponse struct {
	MessageID int64            `json:"message_id"`
	Reactions []event.Reaction `json:"reactions"`
}

type MarkReadResponse struct {
	MessageID int64 `json:"message_id"`
	Marked    bool  `json:"marked"`
}

type MarkAllReadResponse struct {
	ChatID      event.ID `json:"chat_id"`
	MarkedCount int      `json:"marked_count"`
}

type ClearChatResponse struct {
	ChatID       event.ID `json:"chat_id"`
	DeletedCount int      `json:"deleted_count"`
}
