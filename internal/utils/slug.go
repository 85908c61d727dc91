// internal/utils/slug.go
package utils

import (
	"strings"
)

// Slugify lowercases s and collapses every run of characters outside [a-z0-9]
// into a single hyphen.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false

	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}

	return b.String()
}
