package auth

import (
	"strings"
	"time"
)

// normalizeScopes trims and de-duplicates scopes, keeping their order.
func normalizeScopes(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, field := range strings.Fields(value) {
			lowered := strings.ToLower(field)
			if _, ok := seen[lowered]; ok {
				continue
			}
			seen[lowered] = struct{}{}
			out = append(out, field)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// renewMargin caps the configured margin at half the token lifetime so short
// lived tokens are still served from cache.
func renewMargin(configured time.Duration, lifetime time.Duration) time.Duration {
	if configured <= 0 {
		return 0
	}
	if half := lifetime / 2; lifetime > 0 && configured > half {
		return half
	}
	return configured
}
