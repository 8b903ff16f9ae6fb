package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrInvalidToken, "unauthenticated"},
		{ErrNotOwner, "forbidden"},
		{fmt.Errorf("send: %w", ErrEmptyMessage), "invalid_argument"},
		{ErrMessageNotFound, "not_found"},
		{ErrPinLimit, "limit_exceeded"},
		{fmt.Errorf("%w: duplicate", ErrConflict), "conflict"},
		{ErrUnavailable, "unavailable"},
		{errors.New("disk on fire"), "internal"},
		{nil, "internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Code(tc.err), fmt.Sprint(tc.err))
	}
}

func TestKindKeepsSpecificError(t *testing.T) {
	err := fmt.Errorf("pin: %w", ErrPinLimit)

	assert.ErrorIs(t, err, ErrPinLimit)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Equal(t, ErrLimitExceeded, Kind(err))
	assert.Nil(t, Kind(errors.New("x")))
	assert.Equal(t, "pinned messages limit reached", ErrPinLimit.Error())
}

func TestDeriveKind(t *testing.T) {
	cases := []struct {
		content, image, file string
		want                 MessageKind
	}{
		{"hi", "", "", KindText},
		{"", "https://cdn/x.png", "", KindImage},
		{"look", "https://cdn/x.png", "", KindTextImage},
		{"", "", "https://cdn/a.pdf", KindFile},
		{"doc", "", "https://cdn/a.pdf", KindTextFile},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveKind(tc.content, tc.image, tc.file))
	}
}

func TestPatchApply(t *testing.T) {
	img := "https://cdn/images/a.webp"
	m := Message{
		Content:          "old",
		ImageURL:         img,
		OriginalImageURL: "https://cdn/original/a.png",
		Kind:             KindTextImage,
	}

	t.Run("content only keeps media", func(t *testing.T) {
		got := MessagePatch{Content: lo.ToPtr("new")}.Apply(m)
		assert.Equal(t, "new", got.Content)
		assert.Equal(t, img, got.ImageURL)
		assert.Equal(t, KindTextImage, got.Kind)
	})

	t.Run("empty image drops companion", func(t *testing.T) {
		empty := ""
		got := MessagePatch{Content: lo.ToPtr("text"), ImageURL: &empty}.Apply(m)
		assert.Empty(t, got.ImageURL)
		assert.Empty(t, got.OriginalImageURL)
		assert.Equal(t, KindText, got.Kind)
	})

	t.Run("replace image", func(t *testing.T) {
		next, orig := "https://cdn/images/b.webp", "https://cdn/original/b.png"
		got := MessagePatch{ImageURL: &next, OriginalImageURL: &orig}.Apply(m)
		assert.Equal(t, next, got.ImageURL)
		assert.Equal(t, orig, got.OriginalImageURL)
		assert.Equal(t, "old", got.Content, "text is kept when content is omitted")
		assert.Equal(t, KindTextImage, got.Kind)
	})

	t.Run("empty content clears text", func(t *testing.T) {
		got := MessagePatch{Content: lo.ToPtr("")}.Apply(m)
		assert.Empty(t, got.Content)
		assert.Equal(t, img, got.ImageURL)
		assert.Equal(t, KindImage, got.Kind)
	})
}

func TestMediaURLs(t *testing.T) {
	m := Message{ImageURL: "a", FileURL: "c"}
	assert.Equal(t, []string{"a", "c"}, m.MediaURLs())
	assert.Nil(t, (&Message{}).MediaURLs())
}

func TestRoleCanModerate(t *testing.T) {
	assert.True(t, RoleOwner.CanModerate())
	assert.True(t, RoleAdmin.CanModerate())
	assert.False(t, RoleMember.CanModerate())
	assert.False(t, RoleNone.CanModerate())
}
