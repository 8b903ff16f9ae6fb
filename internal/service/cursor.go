package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// searchCursor: непрозрачный курсор продолжения поиска.
type searchCursor struct {
	BeforeID int64  `json:"before_id"`
	Query    string `json:"q"`
}

func encodeCursor(c searchCursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeCursor(s string) (*searchCursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", domain.ErrInvalidCursor, err)
	}
	var c searchCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", domain.ErrInvalidCursor, err)
	}
	if c.BeforeID <= 0 {
		return nil, fmt.Errorf("%w: before_id", domain.ErrInvalidCursor)
	}
	return &c, nil
}
