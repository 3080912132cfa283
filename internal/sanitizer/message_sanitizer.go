// Package sanitizer strips markup from guest-submitted chat content before
// it is stored or fanned out to other clients.
package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizer reduces a chat message body to plain text.
type MessageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer creates a sanitizer with a strict policy: chat bodies
// are plain text, so all elements and attributes are removed.
func NewMessageSanitizer() *MessageSanitizer {
	return &MessageSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize strips markup from a message body and normalizes whitespace.
// The policy escapes entities, so the result is unescaped back to the
// literal characters the sender typed.
func (s *MessageSanitizer) Sanitize(body string) string {
	cleaned := s.policy.Sanitize(body)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
