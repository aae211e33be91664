package store

import (
	"testing"
	"time"

	"github.com/pavelanni/xaminai/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveTestResult(t *testing.T, s *Store, question string, createdAt time.Time) model.GradedResult {
	t.Helper()
	r, err := s.SaveResult(model.GradedResult{
		Mode:          model.ModeText,
		Question:      question,
		StudentAnswer: "answer to " + question,
		Score:         3.5,
		MaxScore:      5,
		Difficulty:    model.DifficultyMedium,
		Feedback:      "feedback for " + question,
		CreatedAt:     createdAt,
	})
	if err != nil {
		t.Fatalf("saveTestResult: %v", err)
	}
	return r
}

func TestResultCRUD(t *testing.T) {
	s := newTestStore(t)

	// Empty DB should return zero count and empty list.
	count, err := s.ResultCount()
	if err != nil {
		t.Fatalf("ResultCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 results, got %d", count)
	}

	list, err := s.ListRecentResults(10)
	if err != nil {
		t.Fatalf("ListRecentResults: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	// Save assigns an ID and timestamp.
	saved, err := s.SaveResult(model.GradedResult{
		Mode:              model.ModeFile,
		Question:          "What is Go?",
		StudentAnswer:     "A language.",
		SubmittedQuestion: "submitted",
		RawText:           "What is Go?\nA language.",
		Score:             4,
		MaxScore:          5,
		Difficulty:        model.DifficultyHard,
		Feedback:          "Good.",
		FileName:          "answer.txt",
	})
	if err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated ID")
	}
	if saved.CreatedAt.IsZero() {
		t.Fatal("expected generated timestamp")
	}

	got, err := s.GetResult(saved.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got == nil {
		t.Fatal("expected result, got nil")
	}
	if got.Question != "What is Go?" {
		t.Errorf("expected question 'What is Go?', got %q", got.Question)
	}
	if got.Mode != model.ModeFile {
		t.Errorf("expected mode file, got %q", got.Mode)
	}
	if got.Difficulty != model.DifficultyHard {
		t.Errorf("expected difficulty hard, got %q", got.Difficulty)
	}
	if got.Score != 4 || got.MaxScore != 5 {
		t.Errorf("expected score 4/5, got %v/%d", got.Score, got.MaxScore)
	}
	if got.RawText != "What is Go?\nA language." {
		t.Errorf("raw text not preserved: %q", got.RawText)
	}
	if got.FileName != "answer.txt" || got.SubmittedQuestion != "submitted" {
		t.Errorf("unexpected file/submitted fields: %+v", got)
	}

	// Not found.
	missing, err := s.GetResult("does-not-exist")
	if err != nil {
		t.Fatalf("GetResult missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing result, got %+v", missing)
	}

	count, err = s.ResultCount()
	if err != nil {
		t.Fatalf("ResultCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}

func TestSaveResultKeepsExplicitID(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.SaveResult(model.GradedResult{ID: "fixed-id", Mode: model.ModeDrive})
	if err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if saved.ID != "fixed-id" {
		t.Errorf("expected ID fixed-id, got %q", saved.ID)
	}

	// Duplicate IDs are rejected.
	if _, err := s.SaveResult(model.GradedResult{ID: "fixed-id", Mode: model.ModeDrive}); err == nil {
		t.Error("expected error on duplicate ID")
	}
}

func TestListRecentResults(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	saveTestResult(t, s, "Q1", base)
	saveTestResult(t, s, "Q2", base.Add(time.Minute))
	saveTestResult(t, s, "Q3", base.Add(2*time.Minute))

	tests := []struct {
		name      string
		limit     int
		wantFirst string
		wantCount int
	}{
		{"all", 10, "Q3", 3},
		{"limited", 2, "Q3", 2},
		{"one", 1, "Q3", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListRecentResults(tt.limit)
			if err != nil {
				t.Fatalf("ListRecentResults: %v", err)
			}
			if len(list) != tt.wantCount {
				t.Fatalf("expected %d results, got %d", tt.wantCount, len(list))
			}
			if list[0].Question != tt.wantFirst {
				t.Errorf("expected newest %q first, got %q", tt.wantFirst, list[0].Question)
			}
		})
	}

	list, _ := s.ListRecentResults(10)
	if list[2].Question != "Q1" {
		t.Errorf("expected oldest last, got %q", list[2].Question)
	}
}
