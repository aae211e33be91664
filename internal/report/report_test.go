package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/xaminai/internal/model"
	"github.com/pavelanni/xaminai/internal/segment"
)

func TestResultPDF(t *testing.T) {
	r := model.GradedResult{
		Mode:       model.ModeText,
		Score:      4.5,
		MaxScore:   5,
		Difficulty: model.DifficultyMedium,
		Feedback:   "Excellent answer, clearly explained and complete.",
	}
	data, err := (&Renderer{}).ResultPDF(r, segment.Result{Question: "Explain photosynthesis.", Answer: "It converts light."})
	if err != nil {
		t.Fatalf("ResultPDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("output does not look like a PDF: %q", data[:min(len(data), 16)])
	}
}

func TestRenderContents(t *testing.T) {
	tests := []struct {
		name     string
		result   model.GradedResult
		detected segment.Result
		want     []string
	}{
		{
			"detected question and answer",
			model.GradedResult{Score: 3, MaxScore: 5, Difficulty: model.DifficultyHard, Feedback: "Missing detail."},
			segment.Result{Question: "Why does it rain?", Answer: "Water cycle."},
			[]string{"Exam Grading Result", "Difficulty: hard", "Max Score: 5", "Question: Why does it rain?",
				"Answer: Water cycle.", "Marks Awarded: 3 / 5", "Missing detail."},
		},
		{
			"falls back to file name",
			model.GradedResult{Score: 2.5, MaxScore: 10, FileName: "answers.pdf", Feedback: "ok"},
			segment.Result{Question: segment.NoContent, Answer: segment.NoContent},
			[]string{"Question: Submitted question", "Answer: answers.pdf", "Marks Awarded: 2.5 / 10"},
		},
		{
			"generic answer placeholder",
			model.GradedResult{MaxScore: 5},
			segment.Result{},
			[]string{"Answer: Submitted answer", "Marks Awarded: 0 / 5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := (&Renderer{}).render(tt.result, tt.detected, false)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			for _, w := range tt.want {
				if !bytes.Contains(data, []byte(w)) {
					t.Errorf("PDF should contain %q", w)
				}
			}
		})
	}
}

func TestNewRenderer(t *testing.T) {
	rd, err := NewRenderer("")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if len(rd.fontTTF) != 0 {
		t.Error("empty path should keep the core font")
	}

	if _, err := NewRenderer(filepath.Join(t.TempDir(), "missing.ttf")); err == nil {
		t.Error("expected error for a missing font file")
	}
}

func TestRenderUTF8Font(t *testing.T) {
	const ttf = "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"
	if _, err := os.Stat(ttf); err != nil {
		t.Skip("DejaVuSans not installed")
	}
	rd, err := NewRenderer(ttf)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	r := model.GradedResult{Score: 5, MaxScore: 5, Difficulty: model.DifficultyEasy, Feedback: "Отличный ответ."}
	data, err := rd.ResultPDF(r, segment.Result{Question: "Что такое фотосинтез?", Answer: "Свет в энергию."})
	if err != nil {
		t.Fatalf("ResultPDF: %v", err)
	}
	if !bytes.Contains(data, []byte("FontFile2")) {
		t.Error("expected the TrueType font to be embedded")
	}
}

func TestFormatScore(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{4, "4"},
		{3.5, "3.5"},
		{0, "0"},
		{2.25, "2.25"},
	}
	for _, tt := range tests {
		if got := FormatScore(tt.in); got != tt.want {
			t.Errorf("FormatScore(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
