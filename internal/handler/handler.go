package handler

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/xaminai/internal/backend"
	"github.com/pavelanni/xaminai/internal/handler/views"
	appI18n "github.com/pavelanni/xaminai/internal/i18n"
	"github.com/pavelanni/xaminai/internal/model"
	"github.com/pavelanni/xaminai/internal/report"
	"github.com/pavelanni/xaminai/internal/segment"
	"github.com/pavelanni/xaminai/internal/store"
)

// recentLimit is how many local results the examiner page lists.
const recentLimit = 5

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	backend  *backend.Client
	config   model.Config
	validate *validator.Validate
	pdf      *report.Renderer
}

// New creates a new Handler.
func New(s *store.Store, b *backend.Client, cfg model.Config) (*Handler, error) {
	pdf, err := report.NewRenderer(cfg.PDFFont)
	if err != nil {
		return nil, err
	}
	return &Handler{store: s, backend: b, config: cfg, validate: newValidator(), pdf: pdf}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)

		r.Get("/", h.handleLanding)

		r.Get("/examiner", h.handleExaminerPage)
		r.Post("/examiner/grade", h.handleGrade)
		r.Post("/examiner/segment", h.handleSegmentPreview)
		r.Get("/examiner/result/{id}", h.handleResultPage)
		r.Get("/examiner/result/{id}/pdf", h.handleResultPDF)

		r.Get("/student", h.handleStudentPage)
		r.Post("/student/guidance", h.handleGuidance)

		r.Get("/dashboard", h.handleDashboard)
	})
}

// BasePathMiddleware makes the deployment prefix available to views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes an absolute route with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	h.render(w, r, status, views.ErrorPage(appI18n.T(r.Context(), msgID)))
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleLanding(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.LandingPage())
}

func (h *Handler) handleExaminerPage(w http.ResponseWriter, r *http.Request) {
	mode := model.Mode(r.URL.Query().Get("mode"))
	if !validMode(mode) {
		mode = model.ModeText
	}
	h.renderExaminer(w, r, http.StatusOK, views.GradeForm{
		Mode:       mode,
		Difficulty: h.config.DefaultDifficulty,
		MaxScore:   h.config.DefaultMaxScore,
	})
}

func (h *Handler) renderExaminer(w http.ResponseWriter, r *http.Request, status int, form views.GradeForm) {
	results, err := h.store.ListRecentResults(recentLimit)
	if err != nil {
		slog.Warn("failed to list recent results", "error", err)
	}
	recent := make([]views.RecentResult, 0, len(results))
	for _, res := range results {
		recent = append(recent, views.RecentResult{
			Result:     res,
			Question:   model.DetectedQA(res).Question,
			Evaluation: model.Evaluate(res.Score, float64(res.MaxScore)),
		})
	}
	h.render(w, r, status, views.ExaminerPage(form, recent))
}

// gradeFailures maps a submission mode to the message shown when the
// backend call fails.
var gradeFailures = map[model.Mode]string{
	model.ModeText:  "ErrGradingFailed",
	model.ModeFile:  "ErrGradingFailed",
	model.ModeImage: "ErrImageGradingFailed",
	model.ModeDrive: "ErrDriveGradingFailed",
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in := h.parseGradeInput(r)
	form := in.form()

	if id := h.invalidField(in, gradeFieldErrors); id != "" {
		form.Error = appI18n.T(ctx, id)
		h.renderExaminer(w, r, http.StatusBadRequest, form)
		return
	}

	var upload *backend.Upload
	if in.Mode == model.ModeFile || in.Mode == model.ModeImage {
		var err error
		upload, err = readUpload(r)
		if err != nil {
			slog.Warn("failed to read upload", "error", err)
		}
		if upload == nil {
			form.Error = appI18n.T(ctx, "ErrUploadFile")
			if in.Mode == model.ModeImage {
				form.Error = appI18n.T(ctx, "ErrUploadImage")
			}
			h.renderExaminer(w, r, http.StatusBadRequest, form)
			return
		}
	}

	rec := model.GradedResult{
		Mode:          in.Mode,
		MaxScore:      in.MaxScore,
		Difficulty:    in.Difficulty,
		CorrectAnswer: in.CorrectAnswer,
	}

	var (
		res *model.GradeResult
		err error
	)
	switch in.Mode {
	case model.ModeFile:
		rec.FileName = upload.Name
		rec.RawText = uploadText(upload)
		res, err = h.backend.GradeFile(ctx, *upload, in.MaxScore, in.Difficulty)
	case model.ModeImage:
		rec.FileName = upload.Name
		res, err = h.backend.GradeImage(ctx, *upload, in.MaxScore, in.Difficulty)
	case model.ModeDrive:
		res, err = h.backend.GradeDrive(ctx, backend.ExtractDriveFileID(in.DriveLink), in.MaxScore, in.Difficulty)
	default:
		rec.SubmittedQuestion = in.Question
		rec.SubmittedAnswer = in.StudentAnswer
		res, err = h.backend.Grade(ctx, model.GradeRequest{
			Question:      in.Question,
			StudentAnswer: in.StudentAnswer,
			CorrectAnswer: in.CorrectAnswer,
			MaxScore:      in.MaxScore,
			Difficulty:    in.Difficulty,
		})
	}
	if err != nil {
		slog.Error("grading failed", "mode", in.Mode, "error", err)
		form.Error = appI18n.T(ctx, gradeFailures[in.Mode])
		h.renderExaminer(w, r, http.StatusBadGateway, form)
		return
	}

	rec.Question = res.Question
	rec.StudentAnswer = res.StudentAnswer
	rec.Score = res.Score
	rec.Feedback = res.Feedback

	saved, err := h.store.SaveResult(rec)
	if err != nil {
		slog.Error("failed to save result", "error", err)
		h.renderError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	slog.Info("graded answer",
		"id", saved.ID,
		"mode", saved.Mode,
		"score", saved.Score,
		"max_score", saved.MaxScore,
		"difficulty", saved.Difficulty,
	)

	http.Redirect(w, r, h.path("/examiner/result/"+saved.ID), http.StatusSeeOther)
}

// lookupResult loads the result named in the URL, writing the error page
// itself when there is none.
func (h *Handler) lookupResult(w http.ResponseWriter, r *http.Request) *model.GradedResult {
	id := chi.URLParam(r, "id")
	res, err := h.store.GetResult(id)
	if err != nil {
		slog.Error("failed to load result", "id", id, "error", err)
		h.renderError(w, r, http.StatusInternalServerError, "ErrInternal")
		return nil
	}
	if res == nil {
		h.renderError(w, r, http.StatusNotFound, "ErrResultNotFound")
		return nil
	}
	return res
}

func (h *Handler) handleResultPage(w http.ResponseWriter, r *http.Request) {
	res := h.lookupResult(w, r)
	if res == nil {
		return
	}
	h.render(w, r, http.StatusOK, views.ResultPage(views.ResultData{
		Result:     *res,
		Detected:   model.DetectedQA(*res),
		Evaluation: model.Evaluate(res.Score, float64(res.MaxScore)),
	}))
}

func (h *Handler) handleResultPDF(w http.ResponseWriter, r *http.Request) {
	res := h.lookupResult(w, r)
	if res == nil {
		return
	}
	data, err := h.pdf.ResultPDF(*res, model.DetectedQA(*res))
	if err != nil {
		slog.Error("failed to render PDF", "id", res.ID, "error", err)
		h.renderError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName+`"`)
	_, _ = w.Write(data)
}

// handleSegmentPreview runs question detection on the submitted text and
// returns the preview fragment. Without a "text" field it segments the
// question and answer fields of the grading form joined by a newline.
func (h *Handler) handleSegmentPreview(w http.ResponseWriter, r *http.Request) {
	text := r.FormValue("text")
	if text == "" {
		text = r.FormValue("question") + "\n" + r.FormValue("student_answer")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.SegmentPreview(segment.Segment(text)).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.backend.History(ctx)
	if err != nil {
		slog.Error("failed to load history", "error", err)
		h.render(w, r, http.StatusBadGateway, views.DashboardPage(nil, appI18n.T(ctx, "ErrHistoryFailed")))
		return
	}
	h.render(w, r, http.StatusOK, views.DashboardPage(entries, ""))
}
