package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// XMaxPostRunes is the character limit of a single X post
const XMaxPostRunes = 280

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// CleanGenerated strips reasoning blocks emitted by reasoning models and
// surrounding whitespace. With lastLineOnly set, only the last non-empty line
// is kept.
func CleanGenerated(text string, lastLineOnly bool) string {
	text = thinkBlock.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if !lastLineOnly {
		return text
	}
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// Truncate shortens text to at most limit runes, cutting on a word boundary
// when one exists. limit <= 0 disables truncation.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:limit-1])
	if i := strings.LastIndexAny(cut, " \n\t"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \n\t,.;:") + "…"
}

// PostLimit returns the content length limit of a platform
func PostLimit(p Platform) int {
	if p == PlatformX {
		return XMaxPostRunes
	}
	return 0
}
