// Package chunker splits narration text into word-bounded pieces small enough for a
// single speech-synthesis request.
package chunker

import "strings"

// DefaultMaxWords is roughly one minute of speech.
const DefaultMaxWords = 150

// Split returns the words of text grouped into chunks of at most maxWords words, in
// order. Words are separated by any run of whitespace and joined back with one space.
// Blank input gives an empty slice. maxWords <= 0 uses DefaultMaxWords.
func Split(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	words := strings.Fields(text)
	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
