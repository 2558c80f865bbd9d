// Package sanitize provides text sanitization utilities to prevent XSS attacks.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	// spaceRegex matches runs of whitespace, including newlines
	spaceRegex = regexp.MustCompile(`\s+`)
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
// This is a defense-in-depth measure; frontend should also escape output.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes a string for safe text storage by stripping HTML.
// Use for free-form fields like descriptions and time notes.
func Text(s string) string {
	return StripHTML(s)
}

// Line sanitizes a single-line value: tags are removed, whitespace is
// collapsed and the result is cut to at most maxRunes runes. maxRunes <= 0
// disables the limit.
func Line(s string, maxRunes int) string {
	result := spaceRegex.ReplaceAllString(StripHTML(s), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(result) <= maxRunes {
		return result
	}
	runes := []rune(result)
	return strings.TrimSpace(string(runes[:maxRunes]))
}

// TextPtr is a helper for optional string pointers
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}
