package enhancer

import "strings"

// countMatches returns how many of words occur as substrings of s.
// Duplicate entries in words are counted each time.
func countMatches(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// candidate is a scored entry of an ordered keyword table.
type candidate[T any] struct {
	key   T
	score int
}

// argmax returns the first candidate holding the highest positive score.
// Candidates must be passed in table declaration order so that ties resolve
// to the earliest entry.
func argmax[T any](candidates []candidate[T]) (T, bool) {
	var (
		best  T
		top   int
		found bool
	)
	for _, c := range candidates {
		if c.score > top {
			best, top, found = c.key, c.score, true
		}
	}
	return best, found
}

func contains(s, word string) bool {
	return strings.Contains(s, word)
}
