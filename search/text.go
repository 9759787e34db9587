package search

import "strings"

// stopWords lists words carrying no retrieval signal in legal prose. They are
// filtered before the verbatim-match check so boilerplate ("the party shall
// herein...") cannot inflate a match on its own.
var stopWords = makeStopWords(
	"the", "a", "an", "and", "or", "of", "to", "in", "on", "at", "by",
	"for", "with", "from", "as", "that", "this", "it", "is", "are", "was",
	"be", "been", "not", "but", "do", "have", "you",
	"shall", "may", "such", "said", "any", "upon", "herein", "hereof",
	"thereof", "hereby", "thereto", "whereas", "pursuant",
)

func makeStopWords(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// significantWords lowercases the text, strips surrounding punctuation and
// drops stop words.
func significantWords(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.ToLower(strings.Trim(field, `.,!?;:'"()[]{}§-`))
		if word == "" {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		words = append(words, word)
	}
	return words
}

// containsAllQueryWords reports whether every significant query word appears
// somewhere in the chunk text. A query of nothing but stop words never counts
// as a verbatim match.
func containsAllQueryWords(chunkText, query string) bool {
	queryWords := significantWords(query)
	if len(queryWords) == 0 {
		return false
	}

	present := make(map[string]struct{})
	for _, word := range significantWords(chunkText) {
		present[word] = struct{}{}
	}
	for _, word := range queryWords {
		if _, ok := present[word]; !ok {
			return false
		}
	}
	return true
}
