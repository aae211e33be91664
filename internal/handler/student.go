package handler

import (
	"log/slog"
	"net/http"

	"github.com/pavelanni/xaminai/internal/backend"
	"github.com/pavelanni/xaminai/internal/handler/views"
	appI18n "github.com/pavelanni/xaminai/internal/i18n"
	"github.com/pavelanni/xaminai/internal/model"
)

func (h *Handler) handleStudentPage(w http.ResponseWriter, r *http.Request) {
	mode := model.Mode(r.URL.Query().Get("mode"))
	if !validMode(mode) {
		mode = model.ModeText
	}
	h.renderStudent(w, r, http.StatusOK, views.StudentForm{Mode: mode}, nil)
}

func (h *Handler) renderStudent(w http.ResponseWriter, r *http.Request, status int, form views.StudentForm, fb *model.CompanionFeedback) {
	h.render(w, r, status, views.StudentPage(form, fb))
}

// handleGuidance asks the backend for study guidance. Nothing is stored;
// the guidance is shown under the form that produced it.
func (h *Handler) handleGuidance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in := parseCompanionInput(r)
	form := in.form()

	if id := h.invalidField(in, companionFieldErrors); id != "" {
		form.Error = appI18n.T(ctx, id)
		h.renderStudent(w, r, http.StatusBadRequest, form, nil)
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
			h.renderStudent(w, r, http.StatusBadRequest, form, nil)
			return
		}
	}

	var (
		fb  *model.CompanionFeedback
		err error
	)
	switch in.Mode {
	case model.ModeFile:
		fb, err = h.backend.CompanionFile(ctx, *upload)
	case model.ModeImage:
		fb, err = h.backend.CompanionImage(ctx, *upload)
	case model.ModeDrive:
		fb, err = h.backend.CompanionDrive(ctx, backend.ExtractDriveFileID(in.DriveLink))
	default:
		fb, err = h.backend.Companion(ctx, model.NewCompanionRequest(in.Question, in.StudentAnswer, in.CorrectAnswer))
	}
	if err != nil {
		slog.Error("companion request failed", "mode", in.Mode, "error", err)
		form.Error = appI18n.T(ctx, "ErrGuidanceFailed")
		h.renderStudent(w, r, http.StatusBadGateway, form, nil)
		return
	}

	slog.Info("guidance generated", "mode", in.Mode, "keywords", len(fb.Keywords), "steps", len(fb.ImprovementSteps))
	h.renderStudent(w, r, http.StatusOK, form, fb)
}
