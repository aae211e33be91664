// Package segment splits a block of submitted text into a detected question
// line and the answer that follows it. The result is a display aid only; it
// never feeds into grading.
package segment

import (
	"strings"
	"unicode"
)

const (
	// NoContent is returned for both fields when there is nothing to segment.
	NoContent = "—"
	// QuestionNotDetected is returned when no line looks like a question.
	QuestionNotDetected = "Question could not be detected automatically."
	// AnswerNotDetected is returned when no lines follow the question.
	AnswerNotDetected = "Answer could not be detected automatically."
)

// keywords is the closed vocabulary of interrogative and directive terms.
// Order matters only for documentation; matching is any-of.
var keywords = [...]string{
	"explain",
	"why",
	"what",
	"where",
	"when",
	"define",
	"justify",
	"how",
	"compare",
	"contrast",
	"describe",
	"discuss",
	"list",
	"state",
	"illustrate",
	"differentiate",
	"analyze",
	"evaluate",
}

// Result holds the detected question and answer. Both fields are always
// non-empty.
type Result struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Keywords returns a copy of the question vocabulary in its fixed order.
func Keywords() []string {
	out := make([]string, len(keywords))
	copy(out, keywords[:])
	return out
}

// IsQuestionLine reports whether line starts with a keyword or contains one
// as a space-delimited word.
//
// The prefix check is a plain prefix, so "however" matches "how". Callers
// rely on this behavior; do not tighten it to a word boundary.
func IsQuestionLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range keywords {
		if strings.HasPrefix(lower, kw) || strings.Contains(lower, " "+kw+" ") {
			return true
		}
	}
	return false
}

// Segment picks the first question-like line of raw as the question and joins
// every later non-blank line into the answer. Lines before the question are
// dropped.
func Segment(raw string) Result {
	if trim(raw) == "" {
		return Result{Question: NoContent, Answer: NoContent}
	}

	var (
		question    string
		answerLines []string
		found       bool
	)
	for _, line := range strings.Split(raw, "\n") {
		line = trim(line)
		if line == "" {
			continue
		}
		if found {
			answerLines = append(answerLines, line)
			continue
		}
		if IsQuestionLine(line) {
			question = line
			found = true
		}
	}

	res := Result{
		Question: question,
		Answer:   strings.Join(answerLines, " "),
	}
	if res.Question == "" {
		res.Question = QuestionNotDetected
	}
	if res.Answer == "" {
		res.Answer = AnswerNotDetected
	}
	return res
}

// trim strips surrounding whitespace and byte order marks, which editors
// prepend to saved text files.
func trim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}
