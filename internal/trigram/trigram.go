// Package trigram derives the search tokens stored in the path index.
//
// A trigram is a three-character, lowercased, contiguous substring. Strings
// shorter than three characters produce a single token holding the whole
// lowercased string. Characters are runes, so multi-byte names split on
// character boundaries.
package trigram

import "strings"

// Size is the token width in characters.
const Size = 3

// Derive returns the deduplicated trigram set of text in first-seen order.
func Derive(text string) []string {
	lower := strings.ToLower(text)
	runes := []rune(lower)

	if len(runes) < Size {
		return []string{lower}
	}

	seen := make(map[string]struct{}, len(runes)-Size+1)
	out := make([]string, 0, len(runes)-Size+1)
	for i := 0; i+Size <= len(runes); i++ {
		token := string(runes[i : i+Size])
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// ForRecord returns the union of the path and filename trigram sets.
func ForRecord(path, filename string) []string {
	tokens := Derive(path)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		seen[t] = struct{}{}
	}
	for _, t := range Derive(filename) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	return tokens
}
