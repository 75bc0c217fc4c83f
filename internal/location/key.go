package location

import (
	"strings"

	"github.com/campus-card/backend/pkg/utils"
)

// CacheKey derives the cache key for a query. Inputs that differ only in
// case or surrounding whitespace share a key.
func CacheKey(text string, mode Mode) string {
	return utils.HashString(strings.ToLower(strings.TrimSpace(text)) + "_" + mode.String())
}
