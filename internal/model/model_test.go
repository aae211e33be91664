package model

import (
	"testing"

	"github.com/pavelanni/xaminai/internal/segment"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		maxScore float64
		want     Evaluation
	}{
		{"full marks", 5, 5, EvaluationExcellent},
		{"exactly 80 percent", 4, 5, EvaluationExcellent},
		{"just under 80 percent", 3.9, 5, EvaluationGood},
		{"exactly half", 2.5, 5, EvaluationGood},
		{"below half", 2, 5, EvaluationNeedsImprovement},
		{"zero", 0, 10, EvaluationNeedsImprovement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.score, tt.maxScore); got != tt.want {
				t.Errorf("Evaluate(%v, %v) = %q, want %q", tt.score, tt.maxScore, got, tt.want)
			}
		})
	}
}

func TestDetectedQA(t *testing.T) {
	tests := []struct {
		name string
		in   GradedResult
		want segment.Result
	}{
		{
			"backend values win",
			GradedResult{
				Question:          "What is Go?",
				StudentAnswer:     "A language.",
				SubmittedQuestion: "ignored",
				RawText:           "Explain X\nY",
			},
			segment.Result{Question: "What is Go?", Answer: "A language."},
		},
		{
			"submitted fields when backend is silent",
			GradedResult{SubmittedQuestion: "Define entropy.", SubmittedAnswer: "Disorder."},
			segment.Result{Question: "Define entropy.", Answer: "Disorder."},
		},
		{
			"segmenter over raw text",
			GradedResult{RawText: "Header\nExplain photosynthesis.\nIt converts light to energy."},
			segment.Result{Question: "Explain photosynthesis.", Answer: "It converts light to energy."},
		},
		{
			"nothing detected",
			GradedResult{RawText: "The sky is blue."},
			segment.Result{Question: segment.NoContent, Answer: segment.NoContent},
		},
		{
			"empty everything",
			GradedResult{},
			segment.Result{Question: segment.NoContent, Answer: segment.NoContent},
		},
		{
			"mixed sources",
			GradedResult{Question: "Why?", RawText: "Why?\nBecause."},
			segment.Result{Question: "Why?", Answer: "Because."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectedQA(tt.in); got != tt.want {
				t.Errorf("DetectedQA() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCompanionFeedbackNormalize(t *testing.T) {
	var f CompanionFeedback
	f.Normalize()
	if f.Feedback != DefaultCompanionFeedback {
		t.Errorf("expected default feedback, got %q", f.Feedback)
	}
	if f.Keywords == nil || len(f.Keywords) != 0 {
		t.Errorf("expected empty keywords slice, got %#v", f.Keywords)
	}
	if f.ImprovementSteps == nil || len(f.ImprovementSteps) != 0 {
		t.Errorf("expected empty steps slice, got %#v", f.ImprovementSteps)
	}

	f = CompanionFeedback{Feedback: "Good job", Keywords: []string{"cell"}}
	f.Normalize()
	if f.Feedback != "Good job" || len(f.Keywords) != 1 {
		t.Errorf("Normalize should keep existing values, got %+v", f)
	}
}

func TestNewCompanionRequest(t *testing.T) {
	req := NewCompanionRequest("Q", "A", "  ")
	if req.CorrectAnswer != nil {
		t.Errorf("blank correct answer should be nil, got %q", *req.CorrectAnswer)
	}

	req = NewCompanionRequest("Q", "A", "C")
	if req.CorrectAnswer == nil || *req.CorrectAnswer != "C" {
		t.Errorf("expected correct answer C, got %v", req.CorrectAnswer)
	}
}

func TestHistoryEntryCreatedTime(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		year int
	}{
		{"2025-01-02T03:04:05.123456", true, 2025},
		{"2025-01-02T03:04:05", true, 2025},
		{"2025-01-02T03:04:05Z", true, 2025},
		{"yesterday", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := HistoryEntry{CreatedAt: tt.in}.CreatedTime()
			if ok != tt.ok {
				t.Fatalf("CreatedTime(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got.Year() != tt.year {
				t.Errorf("CreatedTime(%q) year = %d, want %d", tt.in, got.Year(), tt.year)
			}
		})
	}
}
