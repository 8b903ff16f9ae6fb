package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// HistoryService: чистый путь чтения истории, реестр соединений не трогает.
type HistoryService struct {
	*base
}

type PageQuery struct {
	Limit  int
	Offset int
	// Before > 0 включает курсорный режим.
	Before int64
}

type Page struct {
	Messages   []domain.MessageView
	HasMore    bool
	TotalCount int
	Limit      int
	Offset     int
	OldestID   int64
}

type Window struct {
	Messages []domain.MessageView
	TargetID int64
	HasOlder bool
	HasNewer bool
}

type SearchHit struct {
	View    domain.MessageView
	Snippet string
}

type SearchResult struct {
	Hits       []SearchHit
	HasMore    bool
	NextCursor string
}

// Page возвращает страницу истории, всегда от старых к новым.
//
// Без курсора: последние limit сообщений, сдвинутые назад на offset.
// С курсором: до limit сообщений с id < Before; HasMore проверяется лишним рядом.
func (s *HistoryService) Page(ctx context.Context, who domain.Identity, chatID int64, q PageQuery) (*Page, error) {
	if err := s.requireMember(ctx, chatID, who.UserID); err != nil {
		return nil, err
	}
	if q.Offset < 0 || q.Before < 0 {
		return nil, fmt.Errorf("%w: offset and before must not be negative", domain.ErrInvalidArgument)
	}
	limit := clampLimit(q.Limit, s.Limits.DefaultPageSize, s.Limits.MaxPageSize)

	total, err := s.History.CountVisible(ctx, chatID, who.UserID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	page := &Page{TotalCount: total, Limit: limit, Offset: q.Offset}
	var msgs []domain.Message

	if q.Before > 0 {
		msgs, err = s.History.ListBefore(ctx, chatID, who.UserID, q.Before, limit+1)
		if err != nil {
			return nil, fmt.Errorf("list before: %w", err)
		}
		if len(msgs) > limit {
			page.HasMore = true
			msgs = msgs[:limit]
		}
		slices.Reverse(msgs)
	} else {
		// начало окна прижимается к нулю: при offset за пределами истории
		// возвращаются самые старые limit сообщений
		start := max(0, total-limit-q.Offset)
		if total > 0 {
			msgs, err = s.History.ListRange(ctx, chatID, who.UserID, start, limit)
			if err != nil {
				return nil, fmt.Errorf("list range: %w", err)
			}
		}
		page.HasMore = start > 0
	}

	if page.Messages, err = s.enr.views(ctx, who.UserID, msgs); err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		page.OldestID = msgs[0].ID
	}
	return page, nil
}

// Around возвращает окно вокруг сообщения: limit/2 более старых,
// само сообщение и limit/2 более новых, по возрастанию id.
func (s *HistoryService) Around(ctx context.Context, who domain.Identity, chatID, messageID int64, limit int) (*Window, error) {
	if err := s.requireMember(ctx, chatID, who.UserID); err != nil {
		return nil, err
	}
	target, err := s.Messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if target.ChatID != chatID {
		return nil, domain.ErrMessageNotFound
	}
	if s.Moderation != nil {
		blocked, err := s.Moderation.IsBlocked(ctx, who.UserID, target.SenderID)
		if err != nil {
			return nil, fmt.Errorf("block check: %w", err)
		}
		if blocked {
			return nil, domain.ErrMessageNotFound
		}
	}

	limit = clampLimit(limit, s.Limits.DefaultPageSize, s.Limits.MaxPageSize)
	half := limit / 2

	older, err := s.History.ListBefore(ctx, chatID, who.UserID, messageID, half+1)
	if err != nil {
		return nil, fmt.Errorf("list older: %w", err)
	}
	newer, err := s.History.ListFrom(ctx, chatID, who.UserID, messageID, half+2)
	if err != nil {
		return nil, fmt.Errorf("list newer: %w", err)
	}

	w := &Window{TargetID: messageID}
	if len(older) > half {
		w.HasOlder = true
		older = older[:half]
	}
	if len(newer) > half+1 {
		w.HasNewer = true
		newer = newer[:half+1]
	}
	slices.Reverse(older)

	if w.Messages, err = s.enr.views(ctx, who.UserID, append(older, newer...)); err != nil {
		return nil, err
	}
	return w, nil
}

// Search ищет подстроку без учёта регистра, новые первыми.
func (s *HistoryService) Search(ctx context.Context, who domain.Identity, chatID int64, query, cursor string, limit int) (*SearchResult, error) {
	if err := s.requireMember(ctx, chatID, who.UserID); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(Sanitize(query))
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(query) > s.Limits.MaxQueryLen {
		return nil, fmt.Errorf("%w: search query exceeds %d characters", domain.ErrInvalidArgument, s.Limits.MaxQueryLen)
	}
	cur, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	var before int64
	if cur != nil {
		if cur.Query != query {
			return nil, fmt.Errorf("%w: cursor belongs to another query", domain.ErrInvalidCursor)
		}
		before = cur.BeforeID
	}
	limit = clampLimit(limit, s.Limits.MaxSearchPage, s.Limits.MaxSearchPage)

	msgs, err := s.History.Search(ctx, chatID, who.UserID, query, before, limit+1)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	res := &SearchResult{Hits: make([]SearchHit, 0, len(msgs))}
	if len(msgs) > limit {
		res.HasMore = true
		msgs = msgs[:limit]
	}

	views, err := s.enr.views(ctx, who.UserID, msgs)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		res.Hits = append(res.Hits, SearchHit{View: v, Snippet: Snippet(v.Content, query, s.Limits.SnippetRadius)})
	}
	if res.HasMore {
		if res.NextCursor, err = encodeCursor(searchCursor{BeforeID: msgs[len(msgs)-1].ID, Query: query}); err != nil {
			return nil, err
		}
	}
	return res, nil
}
