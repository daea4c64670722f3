package schema

import (
	"strconv"
	"strings"
)

// maxIdentifierLen is the shortest identifier limit among supported
// destinations (PostgreSQL truncates at 63 bytes).
const maxIdentifierLen = 63

// SanitizeIdentifier converts an arbitrary source name into a destination
// identifier: lower-cased, characters outside [a-z0-9_] replaced with
// underscores, prefixed with an underscore when it starts with a digit, and
// truncated to the destination limit. The transform is idempotent, so
// sanitizing an already-sanitized name returns it unchanged.
func SanitizeIdentifier(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(lower) + 1)
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()

	if out == "" {
		out = "unnamed"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	if len(out) > maxIdentifierLen {
		out = out[:maxIdentifierLen]
	}
	return out
}

// DedupeIdentifiers sanitizes every name and resolves collisions by
// appending a numeric suffix to later occurrences, keeping input order.
// Distinct source names that sanitize to the same identifier (for example
// "Order ID" and "order_id") stay distinct in the destination.
func DedupeIdentifiers(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))

	for i, name := range names {
		base := SanitizeIdentifier(name)
		candidate := base
		for n := 2; used[candidate]; n++ {
			candidate = suffixed(base, n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// suffixed appends _n, trimming the base so the result stays within the
// identifier limit.
func suffixed(base string, n int) string {
	suffix := "_" + strconv.Itoa(n)
	if len(base)+len(suffix) > maxIdentifierLen {
		base = base[:maxIdentifierLen-len(suffix)]
	}
	return base + suffix
}
