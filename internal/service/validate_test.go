package service

import (
	"strings"
	"testing"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a\nb\tc\rd", Sanitize("a\x00\nb\tc\x07\rd\x7f"))
	assert.Equal(t, "привет", Sanitize("при\x1bвет"))
}

func TestSnippet(t *testing.T) {
	text := strings.Repeat("x", 50) + "Needle" + strings.Repeat("y", 50)

	got := Snippet(text, "needle", 5)
	assert.Equal(t, "…xxxxxNeedleyyyyy…", got)

	assert.Equal(t, "short needle", Snippet("short needle", "NEEDLE", 40))
	assert.Equal(t, "Ёлка…", Snippet("Ёлка зелёная", "нет", 2))
	assert.Equal(t, "…ая ЁЛКА", Snippet("зелёная ЁЛКА", "ёлка", 3))
}

func TestValidateSend_NormalizesInput(t *testing.T) {
	l := DefaultLimits()
	in := SendInput{ChatID: 1, Content: "  hi\x00  ", FileURL: " https://cdn.example.com/files/a.pdf ", FileName: " a.pdf "}

	require.NoError(t, l.validateSend(&in))
	assert.Equal(t, "hi", in.Content)
	assert.Equal(t, "https://cdn.example.com/files/a.pdf", in.FileURL)
	assert.Equal(t, "a.pdf", in.FileName)
}

func TestValidateSend_Limits(t *testing.T) {
	l := DefaultLimits()

	long := SendInput{ChatID: 1, Content: strings.Repeat("ж", 4000)}
	require.NoError(t, l.validateSend(&long))

	tooLong := SendInput{ChatID: 1, Content: strings.Repeat("ж", 4001)}
	assert.ErrorIs(t, l.validateSend(&tooLong), domain.ErrMessageTooLong)

	url := SendInput{ChatID: 1, ImageURL: "https://cdn.example.com/" + strings.Repeat("a", 2048)}
	assert.ErrorIs(t, l.validateSend(&url), domain.ErrInvalidArgument)

	orphan := SendInput{ChatID: 1, Content: "x", OriginalImageURL: "https://cdn.example.com/original/a.png"}
	assert.ErrorIs(t, l.validateSend(&orphan), domain.ErrInvalidArgument)
}

func TestLimits_WithDefaults(t *testing.T) {
	l := Limits{MaxPins: 3}.withDefaults()
	assert.Equal(t, 3, l.MaxPins)
	assert.Equal(t, 4000, l.MaxTextLen)
	assert.Equal(t, 10, l.MaxForwardTargets)
}

func TestCursor_RoundTrip(t *testing.T) {
	s, err := encodeCursor(searchCursor{BeforeID: 77, Query: "fox"})
	require.NoError(t, err)

	c, err := decodeCursor(s)
	require.NoError(t, err)
	assert.Equal(t, int64(77), c.BeforeID)
	assert.Equal(t, "fox", c.Query)

	c, err = decodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = decodeCursor("e30")
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}
