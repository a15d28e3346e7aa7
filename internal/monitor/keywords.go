package monitor

import "strings"

// KeywordSource supplies the current keyword list. It is invoked fresh
// on every poll iteration so edits take effect on the very next check.
type KeywordSource func() []string

// normalizeKeywords trims each keyword, drops empty ones, and collapses
// case-insensitive duplicates, preserving first-seen order.
func normalizeKeywords(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	var out []string
	for _, kw := range list {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// matchesKeyword reports whether any keyword appears as a
// case-insensitive substring of the subject or the sender.
func matchesKeyword(keywords []string, subject, sender string) bool {
	subject = strings.ToLower(subject)
	sender = strings.ToLower(sender)
	for _, kw := range keywords {
		needle := strings.ToLower(kw)
		if strings.Contains(subject, needle) || strings.Contains(sender, needle) {
			return true
		}
	}
	return false
}
