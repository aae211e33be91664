package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/xaminai/internal/backend"
	appI18n "github.com/pavelanni/xaminai/internal/i18n"
	"github.com/pavelanni/xaminai/internal/model"
	"github.com/pavelanni/xaminai/internal/store"
)

const testToken = "test-csrf-token"

func testConfig() model.Config {
	return model.Config{
		MaxUploadBytes:    1 << 20,
		DefaultDifficulty: model.DifficultyMedium,
		DefaultMaxScore:   5,
	}
}

// newTestServer wires a handler to an in-memory store and a fake backend.
func newTestServer(t *testing.T, cfg model.Config, fake http.HandlerFunc) (http.Handler, *store.Store) {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("init i18n: %v", err)
	}
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if fake == nil {
		fake = func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected backend call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	h, err := New(db, backend.NewWithHTTPClient(srv.URL, srv.Client()), cfg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	if cfg.BasePath != "" {
		r.Route(cfg.BasePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}
	return r, db
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// postForm submits url-encoded fields with a matching CSRF cookie and token.
func postForm(t *testing.T, h http.Handler, target string, fields url.Values) *httptest.ResponseRecorder {
	t.Helper()
	fields.Set(csrfFormField, testToken)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(fields.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testToken})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// postFile submits a multipart form with one "file" part.
func postFile(t *testing.T, h http.Handler, target string, fields map[string]string, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.WriteField(csrfFormField, testToken)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testToken})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertContains(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("body should contain %q", w)
		}
	}
}

func TestLandingPage(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), "Examiners This Way", "Students This Way", `href="/examiner"`, `href="/student"`)

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected a CSRF cookie to be issued")
	}
}

func TestNewMissingPDFFont(t *testing.T) {
	cfg := testConfig()
	cfg.PDFFont = filepath.Join(t.TempDir(), "missing.ttf")
	if _, err := New(nil, nil, cfg); err == nil {
		t.Error("expected error for an unreadable PDF font")
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)
	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("unexpected healthz response %d %q", rec.Code, rec.Body.String())
	}
}

func TestExaminerPageModes(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	tests := []struct {
		query string
		want  string
	}{
		{"", `name="student_answer"`},
		{"?mode=file", `accept=".pdf,.docx,.txt,.json"`},
		{"?mode=image", `accept="image/*"`},
		{"?mode=drive", `name="drive_link"`},
		{"?mode=bogus", `name="question"`},
	}
	for _, tt := range tests {
		t.Run("mode"+tt.query, func(t *testing.T) {
			rec := get(t, srv, "/examiner"+tt.query)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			assertContains(t, rec.Body.String(), tt.want, `name="csrf_token"`, `value="5"`)
		})
	}
}

func TestGradeText(t *testing.T) {
	srv, db := newTestServer(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/grade" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body model.GradeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body.Question != "What is inertia?" || body.MaxScore != 5 || body.Difficulty != model.DifficultyHard {
			t.Errorf("unexpected request: %+v", body)
		}
		writeJSON(t, w, map[string]any{
			"question":       "What is inertia?",
			"student_answer": "Resistance to change in motion.",
			"score":          4.5,
			"feedback":       "**Well done**",
		})
	})

	rec := postForm(t, srv, "/examiner/grade", url.Values{
		"mode":           {"text"},
		"question":       {"What is inertia?"},
		"student_answer": {"Resistance to change in motion."},
		"difficulty":     {"hard"},
		"max_score":      {"5"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/examiner/result/") {
		t.Fatalf("unexpected redirect %q", loc)
	}

	n, err := db.ResultCount()
	if err != nil || n != 1 {
		t.Fatalf("expected 1 stored result, got %d (%v)", n, err)
	}

	page := get(t, srv, loc)
	if page.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", page.Code)
	}
	assertContains(t, page.Body.String(),
		"What is inertia?", "Resistance to change in motion.", "4.5 / 5", "Excellent", "<strong>Well done</strong>")
}

func TestGradeValidation(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	tests := []struct {
		name   string
		fields url.Values
		want   string
	}{
		{"missing answer", url.Values{"mode": {"text"}, "question": {"Q?"}}, "Question and answer required"},
		{"blank question", url.Values{"mode": {"text"}, "question": {"  "}, "student_answer": {"A"}}, "Question and answer required"},
		{"max score zero", url.Values{"mode": {"text"}, "question": {"Q"}, "student_answer": {"A"}, "max_score": {"0"}}, "Max score must be between 1 and 20"},
		{"max score not a number", url.Values{"mode": {"text"}, "question": {"Q"}, "student_answer": {"A"}, "max_score": {"ten"}}, "Max score must be between 1 and 20"},
		{"bad difficulty", url.Values{"mode": {"text"}, "question": {"Q"}, "student_answer": {"A"}, "difficulty": {"brutal"}}, "Unknown difficulty"},
		{"bad mode", url.Values{"mode": {"fax"}}, "Unknown submission mode"},
		{"drive without link", url.Values{"mode": {"drive"}, "drive_link": {" "}}, "Please paste a Google Drive link or file ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(t, srv, "/examiner/grade", tt.fields)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			assertContains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestGradeMissingUpload(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	rec := postFile(t, srv, "/examiner/grade", map[string]string{"mode": "file"}, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), "Please upload a file")

	rec = postFile(t, srv, "/examiner/grade", map[string]string{"mode": "image"}, "", nil)
	assertContains(t, rec.Body.String(), "Please upload an image")
}

func TestGradeBackendFailure(t *testing.T) {
	srv, db := newTestServer(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusInternalServerError)
	})

	rec := postForm(t, srv, "/examiner/grade", url.Values{"mode": {"text"}, "question": {"Q"}, "student_answer": {"A"}})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), "Grading failed. Try again.", `value="Q"`)

	rec = postFile(t, srv, "/examiner/grade", map[string]string{"mode": "image"}, "answer.png", []byte("\x89PNG\r\n"))
	assertContains(t, rec.Body.String(), "Image grading failed.")

	rec = postForm(t, srv, "/examiner/grade", url.Values{"mode": {"drive"}, "drive_link": {"abc"}})
	assertContains(t, rec.Body.String(), "Failed to grade Drive file")

	if n, _ := db.ResultCount(); n != 0 {
		t.Errorf("failed gradings should not be stored, got %d", n)
	}
}

func TestGradeFileSegmentsPlainText(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/grade/file" || r.URL.Query().Get("max_score") != "10" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if !strings.HasPrefix(string(data), "Name: Ada") {
			t.Errorf("upload not forwarded verbatim: %q", data)
		}
		writeJSON(t, w, map[string]any{"score": 4, "feedback": "Partly right."})
	})

	rec := postFile(t, srv, "/examiner/grade",
		map[string]string{"mode": "file", "max_score": "10"},
		"answers.txt", []byte("Name: Ada\nWhat is gravity?\nA force between masses."))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}

	page := get(t, srv, rec.Header().Get("Location"))
	body := page.Body.String()
	assertContains(t, body, "What is gravity?", "A force between masses.", "4 / 10", "Needs Improvement")
	if strings.Contains(body, "Name: Ada") {
		t.Error("preamble should not be shown")
	}
}

func TestGradeDrive(t *testing.T) {
	const id = "1AbCdEfGhIjKlMnOpQrStUvWxYz_-0123"
	srv, _ := newTestServer(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/grade/drive" || r.URL.Query().Get("file_id") != id {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		writeJSON(t, w, map[string]any{"question": "Define entropy.", "student_answer": "Disorder.", "score": 3, "feedback": "ok"})
	})

	rec := postForm(t, srv, "/examiner/grade", url.Values{
		"mode":       {"drive"},
		"drive_link": {"https://drive.google.com/file/d/" + id + "/view?usp=sharing"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	page := get(t, srv, rec.Header().Get("Location"))
	assertContains(t, page.Body.String(), "Define entropy.", "3 / 5", "Good")
}

func TestResultPDF(t *testing.T) {
	srv, db := newTestServer(t, testConfig(), nil)
	saved, err := db.SaveResult(model.GradedResult{
		Mode: model.ModeText, Question: "Q", StudentAnswer: "A", Score: 2, MaxScore: 5,
		Difficulty: model.DifficultyEasy, Feedback: "Needs work.",
	})
	if err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	rec := get(t, srv, "/examiner/result/"+saved.ID+"/pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "exam_result.pdf") {
		t.Errorf("unexpected disposition %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}
}

func TestResultNotFound(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	for _, target := range []string{"/examiner/result/missing", "/examiner/result/missing/pdf"} {
		rec := get(t, srv, target)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", target, rec.Code)
		}
		assertContains(t, rec.Body.String(), "Result not found")
	}
}

func TestSegmentPreview(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	tests := []struct {
		name   string
		fields url.Values
		want   []string
	}{
		{"text field", url.Values{"text": {"Roll 12\nDescribe the water cycle.\nEvaporation then rain."}},
			[]string{"Describe the water cycle.", "Evaporation then rain."}},
		{"form fields", url.Values{"question": {"Why is the sky blue?"}, "student_answer": {"Rayleigh scattering."}},
			[]string{"Why is the sky blue?", "Rayleigh scattering."}},
		{"nothing detected", url.Values{"text": {"hello\nworld"}},
			[]string{"Question could not be detected automatically.", "Answer could not be detected automatically."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(t, srv, "/examiner/segment", tt.fields)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			body := rec.Body.String()
			if strings.Contains(body, "<html") {
				t.Error("preview should be a fragment")
			}
			assertContains(t, body, tt.want...)
		})
	}
}

func TestCSRF(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	tests := []struct {
		name   string
		cookie string
		token  string
	}{
		{"no cookie", "", testToken},
		{"no form token", testToken, ""},
		{"mismatch", testToken, "other-token-same-len"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"mode": {"text"}, "question": {"Q"}, "student_answer": {"A"}}
			if tt.token != "" {
				form.Set(csrfFormField, tt.token)
			}
			req := httptest.NewRequest(http.MethodPost, "/examiner/grade", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			if rec.Code != http.StatusForbidden {
				t.Errorf("expected 403, got %d", rec.Code)
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 1024
	srv, _ := newTestServer(t, cfg, nil)

	big := bytes.Repeat([]byte("a"), 2*formOverhead)
	rec := postFile(t, srv, "/examiner/grade", map[string]string{"mode": "file"}, "big.txt", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), "The file is too large")
}

func TestStudentGuidance(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/companion" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["correct_answer"] != nil {
			t.Errorf("blank correct answer should be sent as null, got %v", body["correct_answer"])
		}
		writeJSON(t, w, map[string]any{
			"feedback":          "Mention photons.",
			"keywords":          []string{"chlorophyll", "light"},
			"improvement_steps": []string{"Define the inputs"},
		})
	})

	rec := postForm(t, srv, "/student/guidance", url.Values{
		"mode":           {"text"},
		"question":       {"Explain photosynthesis."},
		"student_answer": {"Plants make food."},
		"correct_answer": {"   "},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), "Mention photons.", "<li>chlorophyll</li>", "<li>Define the inputs</li>", "Plants make food.")
}

func TestStudentGuidanceDefaults(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{})
	})

	rec := postForm(t, srv, "/student/guidance", url.Values{"mode": {"drive"}, "drive_link": {"abc"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), "No feedback generated", "No keywords identified", "No improvement steps suggested")
}

func TestStudentGuidanceErrors(t *testing.T) {
	t.Run("blank fields", func(t *testing.T) {
		srv, _ := newTestServer(t, testConfig(), nil)
		rec := postForm(t, srv, "/student/guidance", url.Values{"mode": {"text"}, "question": {" "}, "student_answer": {"A"}})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertContains(t, rec.Body.String(), "Please enter both question and answer.")
	})

	t.Run("backend down", func(t *testing.T) {
		srv, _ := newTestServer(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		rec := postFile(t, srv, "/student/guidance", map[string]string{"mode": "file"}, "notes.pdf", []byte("%PDF-1.4"))
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		assertContains(t, rec.Body.String(), "Failed to fetch guidance. Please try again.")
	})
}

func TestDashboard(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dashboard/history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `[
			{"id":2,"question":"Newton second law?","score":4,"max_score":5,"difficulty":"hard","mode":"text","created_at":"2025-03-01T10:20:30"},
			{"id":1,"question":"Define work.","score":1,"max_score":5,"difficulty":"easy","mode":"file","created_at":"2025-02-28T09:00:00"}
		]`)
	})

	rec := get(t, srv, "/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(),
		"2 graded answers", "Newton second law?", "Define work.", "2025-03-01 10:20", "4 / 5", "Needs Improvement")
}

func TestDashboardWithoutMaxScore(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id":3,"question":"Legacy row.","score":3,"max_score":0,"difficulty":"easy","mode":"text","created_at":"2025-01-01T08:00:00"}
		]`)
	})

	rec := get(t, srv, "/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	assertContains(t, body, "Legacy row.", "<td>3</td>", `<td class="eval-unknown">—</td>`)
	if strings.Contains(body, "Excellent") {
		t.Error("a row without a maximum must not be rated Excellent")
	}
}

func TestDashboardBackendError(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec := get(t, srv, "/dashboard")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), "Could not load grading history.")
}

func TestBasePath(t *testing.T) {
	cfg := testConfig()
	cfg.BasePath = "/xaminai"
	srv, _ := newTestServer(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"score": 1, "feedback": "f"})
	})

	rec := get(t, srv, "/xaminai/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), `href="/xaminai/examiner"`, `href="/xaminai/student"`)
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName && c.Path != "/xaminai/" {
			t.Errorf("cookie path = %q, want /xaminai/", c.Path)
		}
	}

	post := postForm(t, srv, "/xaminai/examiner/grade", url.Values{"mode": {"text"}, "question": {"Q"}, "student_answer": {"A"}})
	if loc := post.Header().Get("Location"); !strings.HasPrefix(loc, "/xaminai/examiner/result/") {
		t.Errorf("unexpected redirect %q", loc)
	}
}
