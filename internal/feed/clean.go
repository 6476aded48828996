package feed

import "strings"

// Clean normalizes a mapped field value: lines are trimmed, empty lines
// dropped, and the anchor rel-attribute ordering quirk some feeds emit
// ("noopener nofollow") is rewritten so generated HTML stays consistent.
// Clean is idempotent.
func Clean(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, "\n")
	// A single replacement pass can create a new occurrence across the seam
	// of two replaced regions ("noopener nofollow noopener nofollow"), so
	// repeat until a fixed point. Each pass moves a "nofollow" left, so this
	// terminates.
	for {
		next := strings.ReplaceAll(out, "noopener nofollow", "nofollow noopener")
		if next == out {
			return out
		}
		out = next
	}
}
