// Package intent turns a free-form chat message into a generation request.
package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BlueprintTopic is the topic placeholder carried by full-exam requests.
const BlueprintTopic = "BLUEPRINT"

// BlueprintCount is the size of a full exam.
const BlueprintCount = 240

// DefaultCount is used when the message names no number.
const DefaultCount = 5

// UsageText is the reply for messages that are not generation requests.
const UsageText = "Hi, I am an MCQ Generator Chatbot. I am specifically designed to assist exam writers " +
	"by generating multiple-choice questions quickly and efficiently. My purpose is to save your " +
	"time and effort by creating MCQs on any medical topic you provide. Simply share the subject " +
	"or area you need, and I will generate well-structured questions along with accurate answers " +
	"and explanations. Thank you for using this tool to streamline your exam preparation process. " +
	"\nExample: 'Generate 10 MCQs on cardiology' or 'Generate full exam (240 MCQs)'."

var (
	blueprintRe = regexp.MustCompile(`\b(blueprint|full exam|full set|generate full|complete exam|240 mcqs|240 questions)\b`)
	triggerRes  = []*regexp.Regexp{
		regexp.MustCompile(`\bmcq\b`),
		regexp.MustCompile(`\bmcqs\b`),
		regexp.MustCompile(`\bquestions\b`),
		regexp.MustCompile(`\bsawal\b`),
		regexp.MustCompile(`\bmake\b`),
		regexp.MustCompile(`\bcreate\b`),
	}
	countRe = regexp.MustCompile(`\b(\d{1,3})\b`)
	topicRe = regexp.MustCompile(`\b(?:for|on|about|topic|regarding)\s+(.+)$`)
)

// Request is one parsed generation request.
type Request struct {
	Count       int
	Topic       string
	IsBlueprint bool
}

// Parse classifies text. The boolean is false when the message is not a
// request for questions.
func Parse(text string) (Request, bool) {
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return Request{}, false
	}

	if blueprintRe.MatchString(msg) {
		return Request{Count: BlueprintCount, Topic: BlueprintTopic, IsBlueprint: true}, true
	}

	if !hasTrigger(msg) {
		return Request{}, false
	}

	count := DefaultCount
	if m := countRe.FindStringSubmatch(msg); m != nil {
		// At most three digits, so Atoi cannot fail.
		count, _ = strconv.Atoi(m[1])
	}

	topic := msg
	if m := topicRe.FindStringSubmatch(msg); m != nil {
		topic = strings.TrimSpace(m[1])
	}

	return Request{Count: count, Topic: topic}, true
}

func hasTrigger(msg string) bool {
	for _, re := range triggerRes {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}

// RangeError reports a requested count outside [1, Max].
type RangeError struct {
	Count int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("requested %d questions; choose between 1 and %d", e.Count, e.Max)
}

// Validate rejects counts the generator will not attempt.
func (r Request) Validate(maxCount int) error {
	if r.IsBlueprint {
		return nil
	}
	if r.Count < 1 || r.Count > maxCount {
		return &RangeError{Count: r.Count, Max: maxCount}
	}
	return nil
}
