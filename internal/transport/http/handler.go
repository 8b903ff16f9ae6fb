package http

import (
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/event"
	"github.com/cwrk-planet/chat-service/internal/service"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"

	"github.com/samber/lo"
)

type Handler struct {
	messages  *service.MessageService
	reads     *service.ReadService
	reactions *service.ReactionService
	pins      *service.PinService
	history   *service.HistoryService
}

func NewHandler(svc *service.Services) *Handler {
	return &Handler{
		messages:  svc.Messages,
		reads:     svc.Reads,
		reactions: svc.Reactions,
		pins:      svc.Pins,
		history:   svc.History,
	}
}

func identity(r *http.Request) (domain.Identity, error) {
	who, ok := httpmw.IdentityFromCtx(r.Context())
	if !ok {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return who, nil
}

// POST /messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "SendMessage", err)
		return
	}
	var req SendMessageRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, "SendMessage", err)
		return
	}

	v, err := h.messages.Send(r.Context(), who, service.SendInput{
		ChatID:           req.ChatID.Int64(),
		Content:          req.Content,
		ImageURL:         req.ImageURL,
		OriginalImageURL: req.OriginalImageURL,
		FileURL:          req.FileURL,
		FileName:         req.FileName,
		FileSize:         req.FileSize,
		FileMime:         req.FileMime,
		ReplyToID:        req.ReplyToMessageID.Int64(),
	})
	if err != nil {
		writeError(w, r, "SendMessage", err)
		return
	}
	writeJSON(w, http.StatusCreated, event.FromView(*v))
}

// PUT /messages/{messageID}
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "EditMessage", err)
		return
	}
	id, err := pathID(r, "messageID")
	if err != nil {
		writeError(w, r, "EditMessage", err)
		return
	}
	var req EditMessageRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, "EditMessage", err)
		return
	}

	v, err := h.messages.Edit(r.Context(), who, id, domain.MessagePatch{
		Content:          req.Content,
		ImageURL:         req.ImageURL,
		OriginalImageURL: req.OriginalImageURL,
	})
	if err != nil {
		writeError(w, r, "EditMessage", err)
		return
	}
	writeJSON(w, http.StatusOK, event.FromView(*v))
}

// DELETE /messages/{messageID}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "DeleteMessage", err)
		return
	}
	id, err := pathID(r, "messageID")
	if err != nil {
		writeError(w, r, "DeleteMessage", err)
		return
	}
	if err := h.messages.Delete(r.Context(), who, id); err != nil {
		writeError(w, r, "DeleteMessage", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /messages/{messageID}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "MarkRead", err)
		return
	}
	id, err := pathID(r, "messageID")
	if err != nil {
		writeError(w, r, "MarkRead", err)
		return
	}
	marked, err := h.reads.MarkRead(r.Context(), who, id)
	if err != nil {
		writeError(w, r, "MarkRead", err)
		return
	}
	writeJSON(w, http.StatusOK, MarkReadResponse{MessageID: id, Marked: marked})
}

// POST /messages/{messageID}/reactions
func (h *Handler) AddReaction(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "AddReaction", err)
		return
	}
	id, err := pathID(r, "messageID")
	if err != nil {
		writeError(w, r, "AddReaction", err)
		return
	}
	var req ReactionRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, "AddReaction", err)
		return
	}
	rs, err := h.reactions.Add(r.Context(), who, id, req.Reaction)
	if err != nil {
		writeError(w, r, "AddReaction", err)
		return
	}
	writeJSON(w, http.StatusOK, ReactionsResponse{MessageID: id, Reactions: event.Reactions(rs)})
}

// DELETE /messages/{messageID}/reactions?reaction=
func (h *Handler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "RemoveReaction", err)
		return
	}
	id, err := pathID(r, "messageID")
	if err != nil {
		writeError(w, r, "RemoveReaction", err)
		return
	}
	reaction := r.URL.Query().Get("reaction")
	if reaction == "" {
		writeError(w, r, "RemoveReaction", invalid("reaction is required"))
		return
	}
	rs, err := h.reactions.Remove(r.Context(), who, id, reaction)
	if err != nil {
		writeError(w, r, "RemoveReaction", err)
		return
	}
	writeJSON(w, http.StatusOK, ReactionsResponse{MessageID: id, Reactions: event.Reactions(rs)})
}

// POST /messages/{messageID}/pin
func (h *Handler) Pin(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "Pin", err)
		return
	}
	id, err := pathID(r, "messageID")
	if err != nil {
		writeError(w, r, "Pin", err)
		return
	}
	if err := h.pins.Pin(r.Context(), who, id); err != nil {
		writeError(w, r, "Pin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /messages/{messageID}/pin
func (h *Handler) Unpin(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "Unpin", err)
		return
	}
	id, err := pathID(r, "messageID")
	if err != nil {
		writeError(w, r, "Unpin", err)
		return
	}
	if err := h.pins.Unpin(r.Context(), who, id); err != nil {
		writeError(w, r, "Unpin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /messages/{messageID}/forward
func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "Forward", err)
		return
	}
	id, err := pathID(r, "messageID")
	if err != nil {
		writeError(w, r, "Forward", err)
		return
	}
	var req ForwardRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, "Forward", err)
		return
	}
	targets := lo.Map(req.ChatIDs, func(c event.ID, _ int) int64 { return c.Int64() })

	vs, err := h.messages.Forward(r.Context(), who, id, targets)
	if err != nil {
		writeError(w, r, "Forward", err)
		return
	}
	writeJSON(w, http.StatusCreated, MessagesResponse{Messages: event.FromViews(vs)})
}

// GET /chats/{chatID}/messages?limit&offset&before
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "History", err)
		return
	}
	chatID, err := pathID(r, "chatID")
	if err != nil {
		writeError(w, r, "History", err)
		return
	}
	var q service.PageQuery
	if q.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, r, "History", err)
		return
	}
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeError(w, r, "History", err)
		return
	}
	if q.Before, err = queryInt64(r, "before"); err != nil {
		writeError(w, r, "History", err)
		return
	}

	page, err := h.history.Page(r.Context(), who, chatID, q)
	if err != nil {
		writeError(w, r, "History", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		Messages: event.FromViews(page.Messages),
		Pagination: Pagination{
			HasMore:         page.HasMore,
			TotalCount:      page.TotalCount,
			Limit:           page.Limit,
			Offset:          page.Offset,
			OldestMessageID: page.OldestID,
		},
	})
}

// GET /chats/{chatID}/messages/around/{messageID}?limit
func (h *Handler) Around(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "Around", err)
		return
	}
	chatID, err := pathID(r, "chatID")
	if err != nil {
		writeError(w, r, "Around", err)
		return
	}
	msgID, err := pathID(r, "messageID")
	if err != nil {
		writeError(w, r, "Around", err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, "Around", err)
		return
	}

	win, err := h.history.Around(r.Context(), who, chatID, msgID, limit)
	if err != nil {
		writeError(w, r, "Around", err)
		return
	}
	writeJSON(w, http.StatusOK, AroundResponse{
		Messages:        event.FromViews(win.Messages),
		TargetMessageID: win.TargetID,
		HasOlder:        win.HasOlder,
		HasNewer:        win.HasNewer,
	})
}

// GET /chats/{chatID}/messages/search?q&limit&cursor
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "Search", err)
		return
	}
	chatID, err := pathID(r, "chatID")
	if err != nil {
		writeError(w, r, "Search", err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, "Search", err)
		return
	}
	qs := r.URL.Query()

	res, err := h.history.Search(r.Context(), who, chatID, qs.Get("q"), qs.Get("cursor"), limit)
	if err != nil {
		writeError(w, r, "Search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Results: lo.Map(res.Hits, func(hit service.SearchHit, _ int) SearchItem {
			return SearchItem{Message: event.FromView(hit.View), Snippet: hit.Snippet}
		}),
		HasMore:    res.HasMore,
		NextCursor: res.NextCursor,
	})
}

// GET /chats/{chatID}/pins
func (h *Handler) ListPinned(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "ListPinned", err)
		return
	}
	chatID, err := pathID(r, "chatID")
	if err != nil {
		writeError(w, r, "ListPinned", err)
		return
	}
	pinned, err := h.pins.List(r.Context(), who, chatID)
	if err != nil {
		writeError(w, r, "ListPinned", err)
		return
	}
	writeJSON(w, http.StatusOK, PinnedResponse{
		Pinned: lo.Map(pinned, func(p service.PinnedMessage, _ int) PinnedItem {
			return PinnedItem{
				Message:  event.FromView(p.View),
				PinnedBy: event.ID(p.PinnedBy),
				PinnedAt: p.PinnedAt,
			}
		}),
	})
}

// POST /chats/{chatID}/read-all
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "MarkAllRead", err)
		return
	}
	chatID, err := pathID(r, "chatID")
	if err != nil {
		writeError(w, r, "MarkAllRead", err)
		return
	}
	n, err := h.reads.MarkAllRead(r.Context(), who, chatID)
	if err != nil {
		writeError(w, r, "MarkAllRead", err)
		return
	}
	writeJSON(w, http.StatusOK, MarkAllReadResponse{ChatID: event.ID(chatID), MarkedCount: n})
}

// DELETE /chats/{chatID}/messages
func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		writeError(w, r, "ClearChat", err)
		return
	}
	chatID, err := pathID(r, "chatID")
	if err != nil {
		writeError(w, r, "ClearChat", err)
		return
	}
	n, err := h.messages.ClearChat(r.Context(), who, chatID)
	if err != nil {
		writeError(w, r, "ClearChat", err)
		return
	}
	writeJSON(w, http.StatusOK, ClearChatResponse{ChatID: event.ID(chatID), DeletedCount: n})
}
