package cache

import "strings"

// Cache keys are derived deterministically from the book identifier so the
// text and analysis entries for a book can always be located (and cleared)
// without extra state:
//
//	book:<ID>:text
//	book:<ID>:analysis

const (
	keyPrefix     = "book"
	EntryText     = "text"
	EntryAnalysis = "analysis"
)

// TextKey returns the cache key for a book's raw text.
func TextKey(bookID string) string {
	return keyPrefix + ":" + strings.TrimSpace(bookID) + ":" + EntryText
}

// AnalysisKey returns the cache key for a book's normalized analysis.
func AnalysisKey(bookID string) string {
	return keyPrefix + ":" + strings.TrimSpace(bookID) + ":" + EntryAnalysis
}

// entryKind extracts the entry segment ("text" | "analysis") from a derived
// key, for logging and metrics labels. Returns "other" for foreign keys.
func entryKind(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != keyPrefix {
		return "other"
	}
	switch parts[2] {
	case EntryText, EntryAnalysis:
		return parts[2]
	default:
		return "other"
	}
}

// bookIDFromKey extracts the book ID segment from a derived key, for logging.
func bookIDFromKey(key string) (string, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != keyPrefix {
		return "", false
	}
	return parts[1], true
}
