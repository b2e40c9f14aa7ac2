package utils

import (
	"regexp"
	"strings"
)

const (
	MaxFeedbackRunes = 1000
	SanitizedMessage = "[SANITIZED: Suspicious content removed]"
	PhonePlaceholder = "[PHONE_REDACTED]"
	EmailPlaceholder = "[EMAIL_REDACTED]"
	CardPlaceholder  = "[CARD_REDACTED]"
)

var (
	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ignore\s+previous`),
		regexp.MustCompile(`(?i)new\s+instructions?`),
		regexp.MustCompile(`(?i)system\s+prompt`),
		regexp.MustCompile(`(?i)forget\s+everything`),
		regexp.MustCompile(`(?i)override`),
		regexp.MustCompile(`(?i)disregard`),
		regexp.MustCompile(`(?i)reset\s+instructions?`),
		regexp.MustCompile(`(?i)you\s+are\s+now`),
		regexp.MustCompile(`(?i)act\s+as\s+if`),
	}

	phonePattern = regexp.MustCompile(`\d{3}[-.]?\d{3}[-.]?\d{4}`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)
)

// SanitizeFeedback truncates free text, replaces it wholesale when it looks like
// a prompt injection, and otherwise redacts phone numbers, emails and card numbers.
func SanitizeFeedback(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	if runes := []rune(text); len(runes) > MaxFeedbackRunes {
		text = string(runes[:MaxFeedbackRunes])
	}

	if IsInjection(text) {
		return SanitizedMessage
	}

	text = phonePattern.ReplaceAllString(text, PhonePlaceholder)
	text = emailPattern.ReplaceAllString(text, EmailPlaceholder)
	text = cardPattern.ReplaceAllString(text, CardPlaceholder)

	return strings.TrimSpace(text)
}

// IsInjection reports whether text matches any known prompt-injection phrase.
func IsInjection(text string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
