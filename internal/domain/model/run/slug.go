package run

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxSlugLen bounds the workspace directory name derived from a goal
const maxSlugLen = 50

// Slugify derives a filesystem-safe workspace key from a goal text.
// The goal is NFKC-normalized, lowercased, and every rune outside
// ASCII [a-z0-9] collapses to an underscore, truncated to maxSlugLen.
// The output alphabet is single-byte, so the length bound can never
// split a rune.
func Slugify(goal string) (string, error) {
	normalized := norm.NFKC.String(goal)
	normalized = strings.ToLower(strings.TrimSpace(normalized))
	if normalized == "" {
		return "", fmt.Errorf("goal is empty after normalization")
	}

	var b strings.Builder
	for _, r := range normalized {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}

	slug := b.String()
	if strings.Trim(slug, "_") == "" {
		return "", fmt.Errorf("goal %q produces an empty slug", goal)
	}
	return slug, nil
}
