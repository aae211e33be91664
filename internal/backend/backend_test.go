package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/xaminai/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestGrade(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/grade" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body["question"] != "What is Go?" || body["student_answer"] != "A language." {
			t.Errorf("unexpected body: %v", body)
		}
		if body["max_score"] != float64(5) || body["difficulty"] != "hard" {
			t.Errorf("unexpected scoring params: %v", body)
		}
		writeJSON(t, w, map[string]any{
			"question":       "What is Go?",
			"student_answer": "A language.",
			"score":          4.5,
			"feedback":       "Nice.",
		})
	})

	res, err := c.Grade(context.Background(), model.GradeRequest{
		Question:      "What is Go?",
		StudentAnswer: "A language.",
		MaxScore:      5,
		Difficulty:    model.DifficultyHard,
	})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if res.Score != 4.5 || res.Feedback != "Nice." {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestGradeFileForwardsUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/grade/file" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("max_score"); got != "10" {
			t.Errorf("expected max_score 10, got %q", got)
		}
		if got := r.URL.Query().Get("difficulty"); got != "easy" {
			t.Errorf("expected difficulty easy, got %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "answer.txt" {
			t.Errorf("expected filename answer.txt, got %q", header.Filename)
		}
		if header.Header.Get("Content-Type") != "text/plain" {
			t.Errorf("content type not forwarded: %q", header.Header.Get("Content-Type"))
		}
		if string(data) != "Explain X\nBecause Y" {
			t.Errorf("file body not forwarded verbatim: %q", data)
		}
		writeJSON(t, w, map[string]any{"score": 7, "feedback": "ok"})
	})

	res, err := c.GradeFile(context.Background(), Upload{
		Name:        "answer.txt",
		ContentType: "text/plain",
		Data:        []byte("Explain X\nBecause Y"),
	}, 10, model.DifficultyEasy)
	if err != nil {
		t.Fatalf("GradeFile: %v", err)
	}
	if res.Score != 7 {
		t.Errorf("expected score 7, got %v", res.Score)
	}
}

func TestGradeDriveQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/grade/drive" || q.Get("file_id") != "abc" || q.Get("max_score") != "5" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		writeJSON(t, w, map[string]any{"question": "Q", "student_answer": "A", "score": 1, "feedback": "f"})
	})

	res, err := c.GradeDrive(context.Background(), "abc", 5, model.DifficultyMedium)
	if err != nil {
		t.Fatalf("GradeDrive: %v", err)
	}
	if res.Question != "Q" || res.StudentAnswer != "A" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCompanionNormalizes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if v, ok := body["correct_answer"]; !ok || v != nil {
			t.Errorf("expected correct_answer null, got %v (present=%v)", v, ok)
		}
		writeJSON(t, w, map[string]any{"feedback": ""})
	})

	res, err := c.Companion(context.Background(), model.NewCompanionRequest("Q", "A", ""))
	if err != nil {
		t.Fatalf("Companion: %v", err)
	}
	if res.Feedback != model.DefaultCompanionFeedback {
		t.Errorf("expected default feedback, got %q", res.Feedback)
	}
	if res.Keywords == nil || res.ImprovementSteps == nil {
		t.Errorf("expected non-nil slices, got %+v", res)
	}
}

func TestCompanionImageAndDrive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/companion/image":
			if _, _, err := r.FormFile("file"); err != nil {
				t.Errorf("expected file part: %v", err)
			}
			writeJSON(t, w, map[string]any{"feedback": "image", "keywords": []string{"k1"}})
		case "/companion/drive":
			if r.URL.Query().Get("file_id") != "xyz" {
				t.Errorf("expected file_id xyz, got %q", r.URL.RawQuery)
			}
			writeJSON(t, w, map[string]any{"feedback": "drive", "improvement_steps": []string{"s1", "s2"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	img, err := c.CompanionImage(context.Background(), Upload{Name: "a.png", ContentType: "image/png", Data: []byte{0x89, 'P'}})
	if err != nil {
		t.Fatalf("CompanionImage: %v", err)
	}
	if img.Feedback != "image" || len(img.Keywords) != 1 {
		t.Errorf("unexpected image feedback: %+v", img)
	}

	drv, err := c.CompanionDrive(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("CompanionDrive: %v", err)
	}
	if len(drv.ImprovementSteps) != 2 {
		t.Errorf("unexpected drive feedback: %+v", drv)
	}
}

func TestHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/dashboard/history" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `[{"id":2,"question":"Q2","score":3,"max_score":5,"difficulty":"easy","mode":"file","created_at":"2025-01-02T03:04:05"},
			{"id":1,"question":"Q1","score":1,"max_score":5,"difficulty":"hard","mode":"text","created_at":"2025-01-01T03:04:05"}]`)
	})

	entries, err := c.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Mode != model.ModeFile || entries[1].Difficulty != model.DifficultyHard {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Grade(context.Background(), model.GradeRequest{Question: "Q", StudentAnswer: "A"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusBadGateway || se.Op != "grade" {
		t.Errorf("unexpected status error: %+v", se)
	}
	if !strings.Contains(se.Body, "boom") {
		t.Errorf("expected body to be captured, got %q", se.Body)
	}
}

func TestMalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	})

	_, err := c.History(context.Background())
	if err == nil || !strings.Contains(err.Error(), "parse response") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestPing(t *testing.T) {
	ok := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs" {
			t.Errorf("unexpected ping path %s", r.URL.Path)
		}
	})
	if err := ok.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if err := down.Ping(context.Background()); err == nil {
		t.Error("expected ping error for 503")
	}
}

func TestNewWithHTTPClient(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	// Only the server's own client trusts its certificate.
	if err := NewWithHTTPClient(srv.URL+"/", srv.Client()).Ping(context.Background()); err != nil {
		t.Errorf("Ping with server client: %v", err)
	}
	if err := New(srv.URL, 5*time.Second).Ping(context.Background()); err == nil {
		t.Error("expected certificate error with default client")
	}
}

func TestExtractDriveFileID(t *testing.T) {
	const id = "1AbCdEfGhIjKlMnOpQrStUvWxYz_-0123"
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"raw id", id, id},
		{"share link", "https://drive.google.com/file/d/" + id + "/view?usp=sharing", id},
		{"open link", "https://drive.google.com/open?id=" + id, id},
		{"padded", "  " + id + "\n", id},
		{"short token kept", "short-id", "short-id"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDriveFileID(tt.in); got != tt.want {
				t.Errorf("ExtractDriveFileID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
