package services

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// DefaultSummarySentences is how many sentences Summarize keeps.
const DefaultSummarySentences = 3

// Document type keyword tables for Classify. The type with the most
// keyword hits wins; ties go to the earlier entry.
var docTypeKeywords = []struct {
	docType  string
	keywords []string
}{
	{"invoice", []string{"invoice", "amount due", "payment", "total", "billed", "vat", "subtotal"}},
	{"contract", []string{"agreement", "party", "parties", "hereby", "terms", "obligations", "termination", "clause"}},
	{"report", []string{"report", "summary", "findings", "analysis", "results", "conclusion", "quarterly"}},
	{"manual", []string{"manual", "instructions", "step", "install", "configure", "usage", "troubleshooting"}},
	{"policy", []string{"policy", "compliance", "procedure", "guidelines", "shall", "must", "prohibited"}},
	{"correspondence", []string{"dear", "regards", "sincerely", "thank you", "wrote", "letter"}},
}

// Classification is the result of document typing.
type Classification struct {
	// DocType is the detected type, or "general" when nothing matched.
	DocType string

	// Tags are the keywords that triggered the classification.
	Tags []string
}

// Comparison holds the vocabulary relationship between two texts.
type Comparison struct {
	// Shared are terms appearing in both texts, most frequent first.
	Shared []string

	// OnlyA and OnlyB are terms exclusive to each text.
	OnlyA []string
	OnlyB []string

	// Similarity is the cosine similarity of the term frequency
	// vectors, in [0, 1].
	Similarity float64
}

// Summarize produces a frequency-based extractive summary of an
// assembled payload: sentences are scored by the frequency of their
// terms across the whole payload and the top scorers are returned in
// original order.
func Summarize(payload *domain.ContextPayload, maxSentences int) string {
	if payload == nil || payload.Empty {
		return ""
	}
	if maxSentences <= 0 {
		maxSentences = DefaultSummarySentences
	}

	var sentences []string
	for _, entry := range payload.Entries {
		sentences = append(sentences, splitSentences(entry.Text)...)
	}
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " ")
	}

	freq := make(map[string]int)
	for _, sentence := range sentences {
		for _, term := range termsOf(sentence) {
			freq[term]++
		}
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, sentence := range sentences {
		terms := termsOf(sentence)
		if len(terms) == 0 {
			ranked[i] = scored{index: i}
			continue
		}
		sum := 0
		for _, term := range terms {
			sum += freq[term]
		}
		ranked[i] = scored{index: i, score: float64(sum) / float64(len(terms))}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})

	picked := ranked[:maxSentences]
	sort.Slice(picked, func(i, j int) bool { return picked[i].index < picked[j].index })

	out := make([]string, len(picked))
	for i, p := range picked {
		out[i] = sentences[p.index]
	}
	return strings.Join(out, " ")
}

// Compare reports the shared and distinct vocabulary of two texts and
// their term-vector cosine similarity.
func Compare(textA, textB string) Comparison {
	freqA := termFrequencies(textA)
	freqB := termFrequencies(textB)

	var cmp Comparison
	for term := range freqA {
		if _, ok := freqB[term]; ok {
			cmp.Shared = append(cmp.Shared, term)
		} else {
			cmp.OnlyA = append(cmp.OnlyA, term)
		}
	}
	for term := range freqB {
		if _, ok := freqA[term]; !ok {
			cmp.OnlyB = append(cmp.OnlyB, term)
		}
	}

	sort.Slice(cmp.Shared, func(i, j int) bool {
		a, b := cmp.Shared[i], cmp.Shared[j]
		fa, fb := freqA[a]+freqB[a], freqA[b]+freqB[b]
		if fa != fb {
			return fa > fb
		}
		return a < b
	})
	sort.Strings(cmp.OnlyA)
	sort.Strings(cmp.OnlyB)

	cmp.Similarity = cosineOverTerms(freqA, freqB)
	return cmp
}

// Classify types a document by keyword hits against the built-in
// tables. Unmatched documents come back as "general" with no tags.
func Classify(text string) Classification {
	lower := strings.ToLower(text)

	best := Classification{DocType: "general"}
	bestHits := 0
	for _, entry := range docTypeKeywords {
		var tags []string
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				tags = append(tags, keyword)
			}
		}
		if len(tags) > bestHits {
			best = Classification{DocType: entry.docType, Tags: tags}
			bestHits = len(tags)
		}
	}
	return best
}

// splitSentences breaks text on common terminators, keeping
// non-empty trimmed sentences.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			flush()
		}
	}
	flush()
	return sentences
}

// termsOf lowercases and splits text into word terms, dropping short
// tokens.
func termsOf(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

func termFrequencies(text string) map[string]int {
	freq := make(map[string]int)
	for _, term := range termsOf(text) {
		freq[term]++
	}
	return freq
}

// cosineOverTerms computes cosine similarity of two sparse term
// frequency vectors.
func cosineOverTerms(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for term, fa := range a {
		normA += float64(fa * fa)
		if fb, ok := b[term]; ok {
			dot += float64(fa * fb)
		}
	}
	for _, fb := range b {
		normB += float64(fb * fb)
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
