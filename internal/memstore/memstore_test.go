package memstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func create(t *testing.T, s *Store, m domain.Message) *domain.Message {
	t.Helper()
	out, err := s.Create(context.Background(), &m)
	require.NoError(t, err)
	return out
}

func TestPinCeilingUnderConcurrency(t *testing.T) {
	s := New()
	ctx := context.Background()

	ids := make([]int64, 20)
	for i := range ids {
		ids[i] = create(t, s, domain.Message{ChatID: 1, SenderID: 1, Content: "m"}).ID
	}

	var ok, limited atomic.Int32
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			created, err := s.Pin(ctx, domain.Pin{ChatID: 1, MessageID: id, PinnedBy: 1, PinnedAt: time.Now()}, 5)
			switch {
			case errors.Is(err, domain.ErrPinLimit):
				limited.Add(1)
			case err == nil && created:
				ok.Add(1)
			}
		}(id)
	}
	wg.Wait()

	assert.EqualValues(t, 5, ok.Load())
	assert.EqualValues(t, 15, limited.Load())

	pins, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pins, 5)
}

func TestPinRejectsForeignChat(t *testing.T) {
	s := New()
	m := create(t, s, domain.Message{ChatID: 1, SenderID: 1, Content: "m"})

	_, err := s.Pin(context.Background(), domain.Pin{ChatID: 2, MessageID: m.ID}, 5)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestMarkReadFirstOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := create(t, s, domain.Message{ChatID: 1, SenderID: 1, Content: "m"})

	first, err := s.MarkRead(ctx, m.ID, 2, time.Now())
	require.NoError(t, err)
	assert.True(t, first)

	first, err = s.MarkRead(ctx, m.ID, 2, time.Now())
	require.NoError(t, err)
	assert.False(t, first)

	_, err = s.MarkRead(ctx, 999, 2, time.Now())
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestMarkAllReadGroupsBySender(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := create(t, s, domain.Message{ChatID: 1, SenderID: 1, Content: "a"})
	b := create(t, s, domain.Message{ChatID: 1, SenderID: 2, Content: "b"})
	create(t, s, domain.Message{ChatID: 1, SenderID: 3, Content: "own"})
	c := create(t, s, domain.Message{ChatID: 1, SenderID: 1, Content: "c"})

	got, err := s.MarkAllRead(ctx, 1, 3, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []domain.SenderReadSummary{
		{SenderID: 1, MessageIDs: []int64{a.ID, c.ID}},
		{SenderID: 2, MessageIDs: []int64{b.ID}},
	}, got)

	got, err = s.MarkAllRead(ctx, 1, 3, time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteKeepsSharedMedia(t *testing.T) {
	s := New()
	ctx := context.Background()
	img := "https://cdn.example.com/images/a.webp"
	orig := create(t, s, domain.Message{ChatID: 1, SenderID: 1, ImageURL: img, Kind: domain.KindImage})

	copies, err := s.Forward(ctx, orig, domain.Identity{UserID: 2}, []int64{2})
	require.NoError(t, err)
	require.Len(t, copies, 1)

	_, orphans, err := s.Delete(ctx, orig.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	_, orphans, err = s.Delete(ctx, copies[0].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{img}, orphans)

	_, _, err = s.Delete(ctx, copies[0].ID, 2)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestDeleteCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := create(t, s, domain.Message{ChatID: 1, SenderID: 1, Content: "m"})
	reply := create(t, s, domain.Message{ChatID: 1, SenderID: 2, Content: "r", ReplyToID: &m.ID})

	_, err := s.MarkRead(ctx, m.ID, 2, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, domain.Reaction{MessageID: m.ID, UserID: 2, Reaction: "🔥"}))
	_, err = s.Pin(ctx, domain.Pin{ChatID: 1, MessageID: m.ID}, 5)
	require.NoError(t, err)

	_, _, err = s.Delete(ctx, m.ID, 1)
	require.NoError(t, err)

	reads, _ := s.ReadTimes(ctx, 2, []int64{m.ID})
	assert.Empty(t, reads)
	rs, _ := s.ListFor(ctx, []int64{m.ID})
	assert.Empty(t, rs)
	pins, _ := s.List(ctx, 1)
	assert.Empty(t, pins)

	got, err := s.Get(ctx, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReplyToID)
}

func TestHistoryHidesBlockedAuthors(t *testing.T) {
	s := New()
	ctx := context.Background()
	create(t, s, domain.Message{ChatID: 1, SenderID: 1, Content: "visible 100%"})
	create(t, s, domain.Message{ChatID: 1, SenderID: 2, Content: "hidden"})
	last := create(t, s, domain.Message{ChatID: 1, SenderID: 1, Content: "visible too"})
	s.Block(3, 2)

	n, err := s.CountVisible(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountVisible(ctx, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	found, err := s.Search(ctx, 1, 3, "VISIBLE", 0, 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, last.ID, found[0].ID)

	found, err = s.Search(ctx, 1, 3, "100%", 0, 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	blocked, err := s.BlockedAmong(ctx, 2, []int64{1, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, blocked)
}

func TestListRangeAndBefore(t *testing.T) {
	s := New()
	ctx := context.Background()
	var ids []int64
	for range 5 {
		ids = append(ids, create(t, s, domain.Message{ChatID: 1, SenderID: 1, Content: "m"}).ID)
	}

	got, err := s.ListRange(ctx, 1, 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[1], ids[2]}, msgIDs(got))

	got, err = s.ListRange(ctx, 1, 1, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.ListBefore(ctx, 1, 1, ids[3], 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2], ids[1]}, msgIDs(got))

	got, err = s.ListFrom(ctx, 1, 1, ids[3], 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[3], ids[4]}, msgIDs(got))
}

func msgIDs(ms []domain.Message) []int64 {
	out := make([]int64, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}
