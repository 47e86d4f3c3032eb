package models

import (
	"errors"
	"fmt"
	"strings"
)

// SummaryRequest carries the text and the fixed length bounds for one model call.
type SummaryRequest struct {
	Text      string `json:"text"`
	MinLength int    `json:"min_length"`
	MaxLength int    `json:"max_length"`
}

// Validate enforces a non-blank text and 0 < MinLength <= MaxLength.
func (r SummaryRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if r.MinLength <= 0 {
		return errors.New("min_length must be positive")
	}
	if r.MinLength > r.MaxLength {
		return fmt.Errorf("min_length %d exceeds max_length %d", r.MinLength, r.MaxLength)
	}
	return nil
}

// SummaryResult is what the presentation layer renders on success.
type SummaryResult struct {
	OriginalExcerpt string `json:"original_excerpt"`
	Summary         string `json:"summary"`
	Truncated       bool   `json:"truncated"`
	Pages           int    `json:"pages,omitempty"`
	TextPages       int    `json:"text_pages,omitempty"`
}

// Excerpt returns the first limit characters of text followed by "..." when
// text is longer, counting characters rather than bytes.
func Excerpt(text string, limit int) (string, bool) {
	if limit <= 0 {
		return text, false
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	return string(runes[:limit]) + "...", true
}
