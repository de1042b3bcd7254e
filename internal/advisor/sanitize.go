package advisor

import (
	"regexp"
	"strings"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	htmlTagRE    = regexp.MustCompile(`<[^>]*>`)
)

// sanitizeMessage normalizes a user message for the log: tags stripped,
// whitespace collapsed. Empty-after-trimming and oversized messages are
// rejected before any state changes.
func sanitizeMessage(text string) (string, error) {
	if len(text) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	s := htmlTagRE.ReplaceAllString(text, "")
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return "", ErrEmptyMessage
	}
	return s, nil
}
