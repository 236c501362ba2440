package chunker

import "strings"

// WordCount approximates the size of text for the embedding budget by
// splitting on single spaces. Runs of spaces count as extra words and an
// empty string counts as one; exact tokenization is not available here.
func WordCount(text string) int {
	return len(strings.Split(text, " "))
}
