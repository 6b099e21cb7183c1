package mcqgen

import (
	"regexp"
	"strings"
)

// VignettePhrase is inserted into non-vignette stems that get converted.
const VignettePhrase = "A 55-year-old man presents with "

var (
	markerRe   = regexp.MustCompile(`^Q\d+\.`)
	leadingRe  = regexp.MustCompile(`^Q\d+\.\s*`)
	vignetteRe = regexp.MustCompile(`\b\d{2,3}-year-old\b`)
)

// SplitBlocks splits text into question blocks. A block starts at the
// beginning of the text and before every line that begins with Q<n>.
// Joining the result with "\n" gives back the input.
func SplitBlocks(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	var blocks []string
	start := 0
	for i := 1; i < len(lines); i++ {
		if markerRe.MatchString(lines[i]) {
			blocks = append(blocks, strings.Join(lines[start:i], "\n"))
			start = i
		}
	}
	return append(blocks, strings.Join(lines[start:], "\n"))
}

// IsVignette reports whether block mentions an age like "62-year-old".
func IsVignette(block string) bool {
	return vignetteRe.MatchString(block)
}

// IsQuestion reports whether block starts with a Q<n>. marker. Only the
// first block of a text can fail this, when the model writes a preamble.
func IsQuestion(block string) bool {
	return markerRe.MatchString(block)
}

// CountVignettes counts vignette question blocks in text. A preamble is
// not a question and is never counted.
func CountVignettes(text string) int {
	n := 0
	for _, b := range SplitBlocks(strings.TrimSpace(text)) {
		if IsQuestion(b) && IsVignette(b) {
			n++
		}
	}
	return n
}

// EnforceVignetteRatio rewrites generated text so it holds exactly
// RequiredVignettes(count) vignette questions where possible. Surplus
// vignettes are dropped; missing ones are made by converting the earliest
// non-vignette stems. A leading block without a Q<n>. marker is kept in
// front unchanged and takes no part in the balance. Output is idempotent
// under a second pass.
func EnforceVignetteRatio(text string, count int) string {
	blocks := SplitBlocks(strings.TrimSpace(text))
	if len(blocks) == 0 {
		return ""
	}
	var preamble []string
	if !IsQuestion(blocks[0]) {
		preamble, blocks = blocks[:1], blocks[1:]
	}
	if len(blocks) == 0 {
		return preamble[0]
	}
	required := RequiredVignettes(count)

	var vignettes, others []string
	for _, b := range blocks {
		if IsVignette(b) {
			vignettes = append(vignettes, b)
		} else {
			others = append(others, b)
		}
	}

	var out []string
	switch {
	case len(vignettes) > required:
		out = append(out, vignettes[:required]...)
		out = append(out, others...)
	case len(vignettes) < required && len(others) > 0:
		need := min(required-len(vignettes), len(others))
		out = append(out, vignettes...)
		for _, b := range others[:need] {
			out = append(out, toVignette(b))
		}
		out = append(out, others[need:]...)
	default:
		out = blocks
	}
	return strings.Join(append(preamble, out...), "\n")
}

func toVignette(block string) string {
	loc := leadingRe.FindStringIndex(block)
	if loc == nil {
		return block
	}
	return block[:loc[1]] + VignettePhrase + block[loc[1]:]
}
