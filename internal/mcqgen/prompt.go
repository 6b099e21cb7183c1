// Package mcqgen builds generation prompts and post-processes model output
// so that the share of patient-vignette questions matches policy.
package mcqgen

import (
	"fmt"
	"strings"
)

// MaxReferenceRunes caps the syllabus excerpt embedded in a prompt.
const MaxReferenceRunes = 2500

// Separator is the line placed between questions.
var Separator = strings.Repeat("-", 40)

// SystemPrompt is sent as the system message of every generation call.
const SystemPrompt = "You are an experienced ABIM exam MCQ writer. You write accurate, " +
	"board-style internal medicine questions with one best answer and concise explanations."

// RequiredVignettes is max(1, ceil(count/10)).
func RequiredVignettes(count int) int {
	n := (count + 9) / 10
	if n < 1 {
		return 1
	}
	return n
}

// BuildPrompt returns the user message asking for count questions on topic.
// reference is trimmed and cut to MaxReferenceRunes; it may be empty.
func BuildPrompt(topic string, count int, reference string) string {
	snippet := truncateRunes(strings.TrimSpace(reference), MaxReferenceRunes)
	vignettes := RequiredVignettes(count)

	var b strings.Builder
	fmt.Fprintf(&b, "Produce %d **unique and professional** MCQs on \"%s\".\n", count, topic)
	fmt.Fprintf(&b, "- Exactly %d should be clinical vignette style, e.g. \"A 50-year-old man presents with...\".\n", vignettes)
	b.WriteString("- Do not repeat any previously generated questions.\n")
	b.WriteString("- The rest MUST be diverse and not repetitive, mixing these question types:\n")
	b.WriteString("  • Short factual recall\n")
	b.WriteString("  • Diagnostic criteria or risk factors\n")
	b.WriteString("  • Management or next best step\n")
	b.WriteString("  • Interpretation of labs, imaging or ECG\n")
	b.WriteString("  • Drug mechanism or contraindication\n")
	b.WriteString("- Each MCQ has 4 options (A-D) and exactly one correct answer.\n")
	b.WriteString("- The explanation is 1-3 sentences. Do not use bold text.\n")
	b.WriteString("- Use the syllabus excerpt below where it is relevant.\n")
	fmt.Fprintf(&b, "- Put a line of 40 dashes (%s) between MCQs.\n\n", Separator)
	b.WriteString("Syllabus (if available):\n")
	b.WriteString(snippet)
	b.WriteString("\n\nFormat strictly:\n")
	b.WriteString("Q1. [stem]\n\n")
	b.WriteString("A. option\nB. option\nC. option\nD. option\n\n")
	b.WriteString("Correct Answer: [A/B/C/D]\n")
	b.WriteString("Explanation: [detailed explanation]\n\n")
	fmt.Fprintf(&b, "Now produce %d questions.", count)
	return b.String()
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
