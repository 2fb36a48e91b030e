package lexical

import "strings"

// tokenize lowercases text and splits it into terms on any rune that is
// not a letter or digit. Stop-words are dropped; numeric and
// alphanumeric tokens (codes, dates, amounts) are always kept since
// exact-token matching is this index's primary value.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !isAlnum(r)
	})

	out := fields[:0]
	for _, tok := range fields {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func isAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' ||
		r >= '0' && r <= '9' || r > 127 && !isSpaceOrPunct(r)
}

func isSpaceOrPunct(r rune) bool {
	switch r {
	case ' ', '–', '—', '‘', '’', '“', '”', '…':
		return true
	}
	return false
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else",
		"for", "to", "of", "in", "on", "at", "by", "with", "as",
		"is", "are", "was", "were", "be", "been", "being", "it",
		"this", "that", "these", "those", "from", "up", "down",
		"over", "under", "again", "further", "than", "so", "such",
		"into", "about", "between", "through", "during", "before",
		"after", "above", "below", "out", "off", "own", "same",
		"too", "very", "can", "will", "just", "should", "now",
		"what", "which", "who", "whom", "when", "where", "why", "how",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
