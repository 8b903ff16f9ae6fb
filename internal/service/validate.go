package service

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type SendInput struct {
	ChatID           int64
	Content          string
	ImageURL         string
	OriginalImageURL string
	FileURL          string
	FileName         string
	FileSize         int64
	FileMime         string
	ReplyToID        int64
}

// Sanitize убирает NUL и управляющие символы, кроме \n, \r и \t.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if r == 0x7f || (r < 0x20) {
			return -1
		}
		return r
	}, s)
}

func normalizeContent(s string) string {
	return strings.TrimSpace(Sanitize(s))
}

func (l Limits) checkText(content string) error {
	if n := utf8.RuneCountInString(content); n > l.MaxTextLen {
		return fmt.Errorf("%w: %d characters, max %d", domain.ErrMessageTooLong, n, l.MaxTextLen)
	}
	return nil
}

func (l Limits) checkURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > l.MaxURLLen {
		return fmt.Errorf("%w: %s exceeds %d characters", domain.ErrInvalidArgument, field, l.MaxURLLen)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) url", domain.ErrInvalidArgument, field)
	}
	if base := strings.TrimRight(l.MediaBaseURL, "/"); base != "" {
		if !strings.HasPrefix(raw, base+"/") || strings.Contains(u.Path, "..") {
			return fmt.Errorf("%w: %s must point to %s", domain.ErrInvalidArgument, field, base)
		}
	}
	return nil
}

// validateSend нормализует ввод и проверяет форму сообщения.
func (l Limits) validateSend(in *SendInput) error {
	in.Content = normalizeContent(in.Content)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.OriginalImageURL = strings.TrimSpace(in.OriginalImageURL)
	in.FileURL = strings.TrimSpace(in.FileURL)
	in.FileName = strings.TrimSpace(Sanitize(in.FileName))
	in.FileMime = strings.TrimSpace(in.FileMime)

	if in.ChatID <= 0 {
		return fmt.Errorf("%w: chat_id is required", domain.ErrInvalidArgument)
	}
	if in.Content == "" && in.ImageURL == "" && in.FileURL == "" {
		return domain.ErrEmptyMessage
	}
	if err := l.checkText(in.Content); err != nil {
		return err
	}
	if in.ImageURL != "" && in.FileURL != "" {
		return domain.ErrBothAttachments
	}
	if in.OriginalImageURL != "" && in.ImageURL == "" {
		return fmt.Errorf("%w: original_image_url requires image_url", domain.ErrInvalidArgument)
	}
	if in.FileURL == "" && (in.FileName != "" || in.FileMime != "" || in.FileSize != 0) {
		return fmt.Errorf("%w: file metadata requires file_url", domain.ErrInvalidArgument)
	}
	for _, f := range []struct{ name, v string }{
		{"image_url", in.ImageURL},
		{"original_image_url", in.OriginalImageURL},
		{"file_url", in.FileURL},
	} {
		if err := l.checkURL(f.name, f.v); err != nil {
			return err
		}
	}
	if utf8.RuneCountInString(in.FileName) > l.MaxFileNameLen {
		return fmt.Errorf("%w: file_name exceeds %d characters", domain.ErrInvalidArgument, l.MaxFileNameLen)
	}
	if len(in.FileMime) > l.MaxMimeLen {
		return fmt.Errorf("%w: file_mime exceeds %d characters", domain.ErrInvalidArgument, l.MaxMimeLen)
	}
	if in.FileSize < 0 {
		return fmt.Errorf("%w: file_size must not be negative", domain.ErrInvalidArgument)
	}
	if in.ReplyToID < 0 {
		return fmt.Errorf("%w: reply_to_message_id", domain.ErrInvalidArgument)
	}
	return nil
}

func (l Limits) validatePatch(p *domain.MessagePatch) error {
	if p.Content != nil {
		*p.Content = normalizeContent(*p.Content)
		if err := l.checkText(*p.Content); err != nil {
			return err
		}
	}
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"image_url", p.ImageURL},
		{"original_image_url", p.OriginalImageURL},
	} {
		if f.v == nil {
			continue
		}
		*f.v = strings.TrimSpace(*f.v)
		if err := l.checkURL(f.name, *f.v); err != nil {
			return err
		}
	}
	return nil
}

func (l Limits) normalizeReaction(r string) (string, error) {
	r = strings.TrimSpace(r)
	if r == "" || utf8.RuneCountInString(r) > l.MaxReactionLen {
		return "", domain.ErrInvalidReaction
	}
	for _, c := range r {
		if unicode.IsControl(c) || unicode.IsSpace(c) {
			return "", domain.ErrInvalidReaction
		}
	}
	return r, nil
}

// Snippet вырезает окружение первого вхождения query (без учёта регистра)
// по radius символов с каждой стороны.
func Snippet(content, query string, radius int) string {
	text := []rune(content)
	q := []rune(query)
	if len(q) == 0 {
		return cut(text, 0, 2*radius)
	}
	lt := lowerRunes(text)
	lq := lowerRunes(q)

	idx := -1
	for i := 0; i+len(lq) <= len(lt); i++ {
		if runesEqual(lt[i:i+len(lq)], lq) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return cut(text, 0, 2*radius)
	}
	return cut(text, idx-radius, idx+len(q)+radius)
}

func cut(text []rune, from, to int) string {
	from = max(from, 0)
	to = min(to, len(text))
	var b strings.Builder
	if from > 0 {
		b.WriteString("…")
	}
	b.WriteString(string(text[from:to]))
	if to < len(text) {
		b.WriteString("…")
	}
	return b.String()
}

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
