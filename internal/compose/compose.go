// ABOUTME: Composes outbound result messages within the platform's size limits.
// ABOUTME: Splits long answers into labeled chunks whose concatenation restores the original text.

package compose

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLen is the platform's per-message text limit.
const DefaultMaxLen = 5000

// Labels prepended to result chunks. The first chunk carries ResultPrefix,
// every continuation chunk carries ContinuedPrefix.
const (
	ResultPrefix    = "研究結果:\n\n"
	ContinuedPrefix = "研究結果 (續):\n\n"
)

// Chunk splits text into contiguous slices of at most maxLen characters
// each, in original order, labeling the first slice as the result and the
// rest as continuations. Lengths are counted in runes so multi-byte text
// is never split mid-character. maxLen values below one fall back to
// DefaultMaxLen.
//
// Stripping the labels and concatenating the chunks in order yields the
// original text exactly.
func Chunk(text string, maxLen int) []string {
	if maxLen < 1 {
		maxLen = DefaultMaxLen
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{ResultPrefix + text}
	}

	chunks := make([]string, 0, (len(runes)+maxLen-1)/maxLen)
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		prefix := ContinuedPrefix
		if start == 0 {
			prefix = ResultPrefix
		}
		chunks = append(chunks, prefix+string(runes[start:end]))
	}
	return chunks
}

// StripLabel removes the result/continuation label from a chunk, used
// when reassembling the original text.
func StripLabel(chunk string) string {
	if rest, ok := strings.CutPrefix(chunk, ResultPrefix); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(chunk, ContinuedPrefix); ok {
		return rest
	}
	return chunk
}

// Len reports the rune length of text, the unit Chunk counts in.
func Len(text string) int {
	return utf8.RuneCountInString(text)
}
