package metrics

import (
	"strings"
	"unicode"
)

// normalizeText applies the shared normalization every text-level comparison
// uses: case folding and whitespace collapsing. Scoring a string against
// itself after normalization always yields zero distance.
func normalizeText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// editDistance is the Levenshtein distance between two sequences, unit cost
// for insert, delete, and substitute. Two-row DP keeps memory linear in the
// shorter dimension.
func editDistance[T comparable](a, b []T) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// normalizedEditDistance is edit distance divided by reference length,
// clamped to [0,1]. Both strings share the fixed normalization. An empty
// reference scores 0 against an empty prediction and 1 against anything
// else.
func normalizedEditDistance(pred, ref string) float64 {
	p := []rune(normalizeText(pred))
	r := []rune(normalizeText(ref))
	if len(r) == 0 {
		if len(p) == 0 {
			return 0
		}
		return 1
	}
	d := float64(editDistance(p, r)) / float64(len(r))
	return min(d, 1)
}
