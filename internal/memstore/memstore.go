// Package memstore: хранилище в памяти с той же семантикой, что и postgres:
// атомарные upsert'ы, потолок закреплений, фильтр блокировок в истории.
// Используется в тестах и для локального запуска без базы.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/samber/lo"
)

type receiptKey struct{ message, reader int64 }

type reactionKey struct {
	message, user int64
	reaction      string
}

type blockKey struct{ blocker, blocked int64 }

type Store struct {
	mu     sync.Mutex
	nextID int64
	now    func() time.Time

	messages  map[int64]domain.Message
	receipts  map[receiptKey]time.Time
	reactions map[reactionKey]domain.Reaction
	pins      map[int64]map[int64]domain.Pin // chatID -> messageID -> pin
	forwards  map[int64]domain.ForwardLink
	members   map[int64]map[int64]domain.Role
	blocks    map[blockKey]struct{}
}

func New() *Store {
	return &Store{
		now:       time.Now,
		messages:  make(map[int64]domain.Message),
		receipts:  make(map[receiptKey]time.Time),
		reactions: make(map[reactionKey]domain.Reaction),
		pins:      make(map[int64]map[int64]domain.Pin),
		forwards:  make(map[int64]domain.ForwardLink),
		members:   make(map[int64]map[int64]domain.Role),
		blocks:    make(map[blockKey]struct{}),
	}
}

func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// --- membership / moderation ---

func (s *Store) AddMember(chatID, userID int64, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[chatID]
	if !ok {
		m = make(map[int64]domain.Role)
		s.members[chatID] = m
	}
	if role == domain.RoleNone {
		role = domain.RoleMember
	}
	m[userID] = role
}

func (s *Store) RemoveMember(chatID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[chatID], userID)
}

func (s *Store) Block(blockerID, blockedID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[blockKey{blockerID, blockedID}] = struct{}{}
}

func (s *Store) IsMember(_ context.Context, chatID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[chatID][userID]
	return ok, nil
}

func (s *Store) ListMembers(_ context.Context, chatID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Keys(s.members[chatID])
	slices.Sort(out)
	return out, nil
}

func (s *Store) Role(_ context.Context, chatID, userID int64) (domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[chatID][userID], nil
}

func (s *Store) IsBlocked(_ context.Context, viewerID, authorID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocks[blockKey{viewerID, authorID}]
	return ok, nil
}

func (s *Store) BlockedAmong(_ context.Context, authorID int64, userIDs []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(userIDs, func(uid int64, _ int) bool {
		_, a := s.blocks[blockKey{uid, authorID}]
		_, b := s.blocks[blockKey{authorID, uid}]
		return a || b
	}), nil
}

// --- messages ---

func (s *Store) Create(_ context.Context, m *domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	cp := *m
	cp.ID = s.nextID
	cp.CreatedAt = s.now().UTC()
	cp.DeliveredAt = cp.CreatedAt
	s.messages[cp.ID] = cp
	return &cp, nil
}

func (s *Store) Get(_ context.Context, id int64) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return &m, nil
}

func (s *Store) GetMany(_ context.Context, ids []int64) (map[int64]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]domain.Message, len(ids))
	for _, id := range ids {
		if m, ok := s.messages[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, m *domain.Message) (*domain.Message, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.messages[m.ID]
	if !ok || old.SenderID != m.SenderID {
		return nil, nil, domain.ErrMessageNotFound
	}
	next := old
	next.Content = m.Content
	next.Kind = m.Kind
	next.ImageURL = m.ImageURL
	next.OriginalImageURL = m.OriginalImageURL
	next.EditedAt = m.EditedAt
	s.messages[m.ID] = next

	return &next, s.orphansLocked(lo.Without(old.MediaURLs(), next.MediaURLs()...)), nil
}

func (s *Store) Delete(_ context.Context, id, senderID int64) (*domain.Message, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.SenderID != senderID {
		return nil, nil, domain.ErrMessageNotFound
	}
	s.dropLocked(m)
	return &m, s.orphansLocked(m.MediaURLs()), nil
}

func (s *Store) DeleteByChat(_ context.Context, chatID int64) (int, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var urls []string
	n := 0
	for _, m := range s.messages {
		if m.ChatID != chatID {
			continue
		}
		s.dropLocked(m)
		urls = append(urls, m.MediaURLs()...)
		n++
	}
	return n, s.orphansLocked(lo.Uniq(urls)), nil
}

// dropLocked удаляет сообщение и производные строки (аналог ON DELETE CASCADE).
func (s *Store) dropLocked(m domain.Message) {
	delete(s.messages, m.ID)
	delete(s.forwards, m.ID)
	delete(s.pins[m.ChatID], m.ID)
	for k := range s.receipts {
		if k.message == m.ID {
			delete(s.receipts, k)
		}
	}
	for k := range s.reactions {
		if k.message == m.ID {
			delete(s.reactions, k)
		}
	}
	for id, m2 := range s.messages {
		if m2.ReplyToID != nil && *m2.ReplyToID == m.ID {
			m2.ReplyToID = nil
			s.messages[id] = m2
		}
	}
}

func (s *Store) orphansLocked(urls []string) []string {
	return lo.Filter(urls, func(u string, _ int) bool {
		for _, m := range s.messages {
			if m.ImageURL == u || m.OriginalImageURL == u || m.FileURL == u {
				return false
			}
		}
		return true
	})
}

func (s *Store) Forward(_ context.Context, src *domain.Message, by domain.Identity, targets []int64) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	out := make([]domain.Message, 0, len(targets))
	for _, chatID := range targets {
		s.nextID++
		m := domain.Message{
			ID:               s.nextID,
			ChatID:           chatID,
			SenderID:         by.UserID,
			SenderName:       by.DisplayName,
			Content:          src.Content,
			Kind:             src.Kind,
			ImageURL:         src.ImageURL,
			OriginalImageURL: src.OriginalImageURL,
			FileURL:          src.FileURL,
			FileName:         src.FileName,
			FileSize:         src.FileSize,
			FileMime:         src.FileMime,
			CreatedAt:        now,
			DeliveredAt:      now,
		}
		s.messages[m.ID] = m
		s.forwards[m.ID] = domain.ForwardLink{
			MessageID:         m.ID,
			OriginalChatID:    src.ChatID,
			OriginalMessageID: src.ID,
			ForwardedBy:       by.UserID,
			CreatedAt:         now,
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) Forwards(_ context.Context, ids []int64) (map[int64]domain.ForwardLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]domain.ForwardLink)
	for _, id := range ids {
		if f, ok := s.forwards[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

// ForwardLink: для проверок в тестах.
func (s *Store) ForwardLink(messageID int64) (domain.ForwardLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forwards[messageID]
	return f, ok
}

// --- receipts ---

func (s *Store) MarkRead(_ context.Context, messageID, readerID int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[messageID]; !ok {
		return false, domain.ErrMessageNotFound
	}
	k := receiptKey{messageID, readerID}
	_, existed := s.receipts[k]
	s.receipts[k] = at
	return !existed, nil
}

func (s *Store) MarkAllRead(_ context.Context, chatID, readerID int64, at time.Time) ([]domain.SenderReadSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySender := map[int64][]int64{}
	for _, m := range s.messages {
		if m.ChatID != chatID || m.SenderID == readerID {
			continue
		}
		k := receiptKey{m.ID, readerID}
		if _, ok := s.receipts[k]; ok {
			continue
		}
		s.receipts[k] = at
		bySender[m.SenderID] = append(bySender[m.SenderID], m.ID)
	}

	senders := lo.Keys(bySender)
	slices.Sort(senders)
	out := make([]domain.SenderReadSummary, 0, len(senders))
	for _, sid := range senders {
		ids := bySender[sid]
		slices.Sort(ids)
		out = append(out, domain.SenderReadSummary{SenderID: sid, MessageIDs: ids})
	}
	return out, nil
}

func (s *Store) ReadTimes(_ context.Context, readerID int64, ids []int64) (map[int64]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]time.Time)
	for _, id := range ids {
		if at, ok := s.receipts[receiptKey{id, readerID}]; ok {
			out[id] = at
		}
	}
	return out, nil
}

// --- reactions ---

func (s *Store) Add(_ context.Context, r domain.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[r.MessageID]; !ok {
		return domain.ErrMessageNotFound
	}
	s.reactions[reactionKey{r.MessageID, r.UserID, r.Reaction}] = r
	return nil
}

func (s *Store) Remove(_ context.Context, messageID, userID int64, reaction string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := reactionKey{messageID, userID, reaction}
	if _, ok := s.reactions[k]; !ok {
		return false, nil
	}
	delete(s.reactions, k)
	return true, nil
}

func (s *Store) ListFor(_ context.Context, ids []int64) (map[int64][]domain.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := lo.SliceToMap(ids, func(id int64) (int64, struct{}) { return id, struct{}{} })
	out := make(map[int64][]domain.Reaction)
	for k, r := range s.reactions {
		if _, ok := want[k.message]; ok {
			out[k.message] = append(out[k.message], r)
		}
	}
	for id := range out {
		slices.SortFunc(out[id], func(a, b domain.Reaction) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			if c := cmp.Compare(a.UserID, b.UserID); c != 0 {
				return c
			}
			return strings.Compare(a.Reaction, b.Reaction)
		})
	}
	return out, nil
}

// --- pins ---

func (s *Store) Pin(_ context.Context, p domain.Pin, max int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.messages[p.MessageID]; !ok || m.ChatID != p.ChatID {
		return false, domain.ErrMessageNotFound
	}
	chat, ok := s.pins[p.ChatID]
	if !ok {
		chat = make(map[int64]domain.Pin)
		s.pins[p.ChatID] = chat
	}
	if _, ok := chat[p.MessageID]; ok {
		return false, nil
	}
	if len(chat) >= max {
		return false, domain.ErrPinLimit
	}
	chat[p.MessageID] = p
	return true, nil
}

func (s *Store) Unpin(_ context.Context, chatID, messageID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pins[chatID][messageID]; !ok {
		return false, nil
	}
	delete(s.pins[chatID], messageID)
	return true, nil
}

func (s *Store) List(_ context.Context, chatID int64) ([]domain.Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := lo.Values(s.pins[chatID])
	slices.SortFunc(out, func(a, b domain.Pin) int { return cmp.Compare(a.MessageID, b.MessageID) })
	return out, nil
}

func (s *Store) PinnedAmong(_ context.Context, ids []int64) (map[int64]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]bool)
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok {
			continue
		}
		if _, ok := s.pins[m.ChatID][id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// --- history ---

// visibleLocked: сообщения чата по возрастанию id без авторов, заблокированных viewerID.
func (s *Store) visibleLocked(chatID, viewerID int64) []domain.Message {
	out := make([]domain.Message, 0)
	for _, m := range s.messages {
		if m.ChatID != chatID {
			continue
		}
		if _, blocked := s.blocks[blockKey{viewerID, m.SenderID}]; blocked {
			continue
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b domain.Message) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) CountVisible(_ context.Context, chatID, viewerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visibleLocked(chatID, viewerID)), nil
}

func (s *Store) ListRange(_ context.Context, chatID, viewerID int64, offset, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.visibleLocked(chatID, viewerID)
	if offset >= len(all) {
		return []domain.Message{}, nil
	}
	return all[offset:min(len(all), offset+limit)], nil
}

func (s *Store) ListBefore(_ context.Context, chatID, viewerID, beforeID int64, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.visibleLocked(chatID, viewerID)
	out := make([]domain.Message, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if all[i].ID < beforeID {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (s *Store) ListFrom(_ context.Context, chatID, viewerID, fromID int64, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, 0, limit)
	for _, m := range s.visibleLocked(chatID, viewerID) {
		if len(out) == limit {
			break
		}
		if m.ID >= fromID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) Search(_ context.Context, chatID, viewerID int64, query string, beforeID int64, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	all := s.visibleLocked(chatID, viewerID)
	out := make([]domain.Message, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		m := all[i]
		if beforeID > 0 && m.ID >= beforeID {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), q) {
			out = append(out, m)
		}
	}
	return out, nil
}
