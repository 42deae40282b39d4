package errors

import (
	"math"
	"strings"
	"unicode"
)

// maxIDLength bounds item ids accepted from documents and API requests.
const maxIDLength = 256

// ValidateID validates an item id for use in selectors, cache keys and
// SVG element ids.
//
// The validation rules are intentionally conservative:
//   - No empty ids (the empty string means "no selection")
//   - No control characters
//   - No double quotes or backslashes (ids are interpolated into CSS selectors)
//   - Maximum length of 256 characters
func ValidateID(id string) error {
	if id == "" {
		return New(ErrCodeEmptyID, "item id cannot be empty")
	}

	if len(id) > maxIDLength {
		return New(ErrCodeInvalidInput, "item id too long (max %d characters)", maxIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "item id contains invalid control characters")
		}
	}

	if strings.ContainsAny(id, `"\`) {
		return New(ErrCodeInvalidInput, "item id cannot contain quotes or backslashes: %q", id)
	}

	return nil
}

// ValidateGap validates the minimum vertical clearance between cards.
func ValidateGap(gap float64) error {
	if math.IsNaN(gap) || math.IsInf(gap, 0) {
		return New(ErrCodeInvalidGap, "gap must be a finite number")
	}
	if gap < 0 {
		return New(ErrCodeInvalidGap, "gap must be >= 0, got %g", gap)
	}
	return nil
}

// ValidateSelectorTemplate validates a CSS selector template used to find
// anchors or cards in a page. The template must contain exactly one %s verb
// which receives the item id.
func ValidateSelectorTemplate(tmpl string) error {
	if strings.TrimSpace(tmpl) == "" {
		return New(ErrCodeInvalidSelector, "selector template cannot be empty")
	}

	if n := strings.Count(tmpl, "%s"); n != 1 {
		return New(ErrCodeInvalidSelector, "selector template must contain exactly one %%s, found %d", n)
	}

	if strings.Count(tmpl, "%") != strings.Count(tmpl, "%s") {
		return New(ErrCodeInvalidSelector, "selector template may only use the %%s verb")
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http, https or file).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") &&
		!strings.HasPrefix(rawURL, "https://") &&
		!strings.HasPrefix(rawURL, "file://") {
		return New(ErrCodeInvalidInput, "URL must use http, https or file scheme")
	}

	return nil
}
