package model

import (
	"context"
	"strings"
	"time"

	"github.com/pavelanni/xaminai/internal/segment"
)

// Mode is the way an answer was submitted.
type Mode string

const (
	ModeText  Mode = "text"
	ModeFile  Mode = "file"
	ModeImage Mode = "image"
	ModeDrive Mode = "drive"
)

// Modes lists submission modes in tab order.
var Modes = []Mode{ModeText, ModeFile, ModeDrive, ModeImage}

// Difficulty represents grading strictness.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists difficulty levels in display order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// GradeRequest is the JSON body of a text grading request.
type GradeRequest struct {
	Question      string     `json:"question"`
	StudentAnswer string     `json:"student_answer"`
	CorrectAnswer string     `json:"correct_answer"`
	MaxScore      int        `json:"max_score"`
	Difficulty    Difficulty `json:"difficulty"`
}

// GradeResult is what the backend returns for any grading request.
type GradeResult struct {
	Question      string  `json:"question"`
	StudentAnswer string  `json:"student_answer"`
	Score         float64 `json:"score"`
	Feedback      string  `json:"feedback"`
}

// CompanionRequest is the JSON body of a text companion request.
// CorrectAnswer is sent as null when the student left it blank.
type CompanionRequest struct {
	Question      string  `json:"question"`
	StudentAnswer string  `json:"student_answer"`
	CorrectAnswer *string `json:"correct_answer"`
}

// NewCompanionRequest builds a request, mapping a blank correct answer to nil.
func NewCompanionRequest(question, answer, correct string) CompanionRequest {
	req := CompanionRequest{Question: question, StudentAnswer: answer}
	if strings.TrimSpace(correct) != "" {
		req.CorrectAnswer = &correct
	}
	return req
}

// DefaultCompanionFeedback is shown when the backend returned no feedback text.
const DefaultCompanionFeedback = "No feedback generated"

// CompanionFeedback is the study companion's guidance for an answer.
type CompanionFeedback struct {
	Feedback         string   `json:"feedback"`
	Keywords         []string `json:"keywords"`
	ImprovementSteps []string `json:"improvement_steps"`
}

// Normalize fills in defaults for fields the backend omitted.
func (f *CompanionFeedback) Normalize() {
	if strings.TrimSpace(f.Feedback) == "" {
		f.Feedback = DefaultCompanionFeedback
	}
	if f.Keywords == nil {
		f.Keywords = []string{}
	}
	if f.ImprovementSteps == nil {
		f.ImprovementSteps = []string{}
	}
}

// HistoryEntry is one row of the backend's grading history.
type HistoryEntry struct {
	ID            int64      `json:"id"`
	Question      string     `json:"question"`
	StudentAnswer string     `json:"student_answer"`
	Score         float64    `json:"score"`
	MaxScore      int        `json:"max_score"`
	Difficulty    Difficulty `json:"difficulty"`
	Mode          Mode       `json:"mode"`
	Feedback      string     `json:"feedback"`
	CreatedAt     string     `json:"created_at"`
}

// CreatedTime parses CreatedAt. The backend emits naive ISO timestamps
// (no zone), which are treated as UTC.
func (e HistoryEntry) CreatedTime() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, e.CreatedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// GradedResult is a grading round-trip kept locally so the result page and
// PDF can be rendered again after a redirect.
type GradedResult struct {
	ID            string     `json:"id"`
	Mode          Mode       `json:"mode"`
	Question      string     `json:"question"`
	StudentAnswer string     `json:"student_answer"`
	CorrectAnswer string     `json:"correct_answer,omitempty"`
	RawText       string     `json:"raw_text,omitempty"`
	Score         float64    `json:"score"`
	MaxScore      int        `json:"max_score"`
	Difficulty    Difficulty `json:"difficulty"`
	Feedback      string     `json:"feedback"`
	FileName      string     `json:"file_name,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	// Fields as submitted, before the backend echoed them back.
	SubmittedQuestion string `json:"submitted_question,omitempty"`
	SubmittedAnswer   string `json:"submitted_answer,omitempty"`
}

// Evaluation is the qualitative band for a score.
type Evaluation string

const (
	EvaluationExcellent        Evaluation = "Excellent"
	EvaluationGood             Evaluation = "Good"
	EvaluationNeedsImprovement Evaluation = "NeedsImprovement"
)

// Evaluate maps a score to a band: >= 80% is excellent, >= 50% is good.
func Evaluate(score, maxScore float64) Evaluation {
	switch {
	case score >= maxScore*0.8:
		return EvaluationExcellent
	case score >= maxScore*0.5:
		return EvaluationGood
	default:
		return EvaluationNeedsImprovement
	}
}

// DetectedQA picks the question and answer to display for a result. Values
// echoed by the backend win, then the submitted form fields, then whatever
// the segmenter finds in the raw submitted text.
func DetectedQA(r GradedResult) segment.Result {
	seg := segment.Segment(r.RawText)
	return segment.Result{
		Question: firstNonBlank(r.Question, r.SubmittedQuestion, detected(seg.Question, segment.QuestionNotDetected)),
		Answer:   firstNonBlank(r.StudentAnswer, r.SubmittedAnswer, detected(seg.Answer, segment.AnswerNotDetected)),
	}
}

func detected(v, notDetected string) string {
	if v == segment.NoContent || v == notDetected {
		return ""
	}
	return v
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return segment.NoContent
}

// Config holds runtime frontend parameters set via CLI flags.
type Config struct {
	BasePath          string // URL prefix for sub-path deployments (e.g. "/xaminai")
	SecureCookies     bool   // Set Secure flag on cookies (disable for local dev)
	MaxUploadBytes    int64
	DefaultDifficulty Difficulty
	DefaultMaxScore   int
	PDFFont           string // TrueType font for PDF reports; empty uses the cp1252 core font
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
