package cache

import (
	"fmt"
	"strings"
)

// Namespace is the shared prefix of every answer-cache key, so the
// whole namespace can be enumerated and cleared in one sweep.
const Namespace = "ai_answer:"

// Key derives the cache key for a (subcategory, question) pair.
// Question text is trimmed and case-folded first, so questions that
// differ only in case or surrounding whitespace share one entry, and
// the subcategory id keeps answers from leaking across subcategories.
func Key(subcategoryID uint64, question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	return fmt.Sprintf("%s%d:%s", Namespace, subcategoryID, q)
}
