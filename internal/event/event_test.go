package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAcceptsStringAndNumber(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{`"42"`, 42},
		{`42`, 42},
		{`"9007199254740993"`, 9007199254740993},
		{`""`, 0},
		{`null`, 0},
	}
	for _, tc := range cases {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(tc.in), &id), tc.in)
		assert.Equal(t, tc.want, id.Int64(), tc.in)
	}

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &id))
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &id))
}

func TestIDMarshalsAsString(t *testing.T) {
	b, err := json.Marshal(ChatFrame{ChatID: 9007199254740993})
	require.NoError(t, err)
	assert.JSONEq(t, `{"chat_id":"9007199254740993"}`, string(b))
}

func TestFromViewNeverNullScalars(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reply := int64(3)

	m := FromView(domain.MessageView{
		Message: domain.Message{
			ID:          7,
			ChatID:      10,
			SenderID:    1,
			SenderName:  "alice",
			Content:     "hi",
			ReplyToID:   &reply,
			CreatedAt:   now,
			DeliveredAt: now,
		},
		ReplyTo: &domain.ReplySnapshot{ID: 3, Content: "q", Kind: domain.KindText, SenderID: 2},
		Forward: &domain.ForwardLink{OriginalChatID: 20, OriginalMessageID: 1, ForwardedBy: 1},
	})

	b, err := json.Marshal(m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))

	assert.Equal(t, "text", raw["message_type"])
	assert.Equal(t, "10", raw["chat_id"])
	assert.Equal(t, "", raw["image_url"])
	assert.Equal(t, []any{}, raw["reactions"])
	assert.Nil(t, raw["edited_at"])
	assert.Equal(t, false, raw["is_edited"])
	assert.Equal(t, true, raw["is_forwarded"])
	assert.Equal(t, float64(3), raw["reply_to_message_id"])

	rt := raw["reply_to_message"].(map[string]any)
	assert.Equal(t, "2", rt["user_id"])
	ff := raw["forwarded_from"].(map[string]any)
	assert.Equal(t, "20", ff["original_chat_id"])
}

func TestFromViewsEmptyIsArray(t *testing.T) {
	b, err := json.Marshal(FromViews(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}
