package llm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// bytesPerToken approximates BPE tokenizers on English text.
const bytesPerToken = 4

// TruncateTokens cuts s to roughly maxTokens tokens, on a rune boundary.
func TruncateTokens(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return s
	}
	limit := maxTokens * bytesPerToken
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// EstimateTokens is the inverse of TruncateTokens' approximation.
func EstimateTokens(s string) int {
	return (len(s) + bytesPerToken - 1) / bytesPerToken
}

var specialTokens = regexp.MustCompile(`<\|[^|<>]*\|>|</?s>|<pad>|<unk>|<mask>`)

// StripSpecialTokens removes tokenizer control tokens and surrounding whitespace.
func StripSpecialTokens(s string) string {
	return strings.TrimSpace(specialTokens.ReplaceAllString(s, ""))
}
