package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/xaminai/internal/backend"
	"github.com/pavelanni/xaminai/internal/handler/views"
	"github.com/pavelanni/xaminai/internal/model"
)

// gradeInput is a submitted examiner form.
type gradeInput struct {
	Mode          model.Mode       `validate:"oneof=text file image drive"`
	Difficulty    model.Difficulty `validate:"oneof=easy medium hard"`
	MaxScore      int              `validate:"min=1,max=20"`
	Question      string           `validate:"text_required"`
	StudentAnswer string           `validate:"text_required"`
	CorrectAnswer string
	DriveLink     string `validate:"drive_required"`
}

// companionInput is a submitted student companion form.
type companionInput struct {
	Mode          model.Mode `validate:"oneof=text file image drive"`
	Question      string     `validate:"text_required"`
	StudentAnswer string     `validate:"text_required"`
	CorrectAnswer string
	DriveLink     string `validate:"drive_required"`
}

// Message IDs for the first failing field.
var (
	gradeFieldErrors = map[string]string{
		"Mode":          "ErrInvalidMode",
		"Difficulty":    "ErrInvalidDifficulty",
		"MaxScore":      "ErrInvalidMaxScore",
		"Question":      "ErrQuestionAnswerRequired",
		"StudentAnswer": "ErrQuestionAnswerRequired",
		"DriveLink":     "ErrDriveLink",
	}
	companionFieldErrors = map[string]string{
		"Mode":          "ErrInvalidMode",
		"Question":      "ErrBothRequired",
		"StudentAnswer": "ErrBothRequired",
		"DriveLink":     "ErrDriveLink",
	}
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("text_required", requiredInMode(model.ModeText))
	_ = v.RegisterValidation("drive_required", requiredInMode(model.ModeDrive))
	return v
}

// requiredInMode requires a non-blank value when the struct's Mode is m.
func requiredInMode(m model.Mode) validator.Func {
	return func(fl validator.FieldLevel) bool {
		mode := fl.Parent().FieldByName("Mode")
		if !mode.IsValid() || model.Mode(mode.String()) != m {
			return true
		}
		return strings.TrimSpace(fl.Field().String()) != ""
	}
}

// invalidField returns the message ID for the first validation failure, or
// "" when in is valid.
func (h *Handler) invalidField(in any, messages map[string]string) string {
	err := h.validate.Struct(in)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if id, ok := messages[verrs[0].Field()]; ok {
			return id
		}
	}
	return "ErrBadForm"
}

func parseMode(s string) model.Mode {
	if s == "" {
		return model.ModeText
	}
	return model.Mode(s)
}

// validMode reports whether m is a known submission mode.
func validMode(m model.Mode) bool {
	return slices.Contains(model.Modes, m)
}

func (h *Handler) parseGradeInput(r *http.Request) gradeInput {
	in := gradeInput{
		Mode:          parseMode(r.FormValue("mode")),
		Difficulty:    model.Difficulty(r.FormValue("difficulty")),
		Question:      r.FormValue("question"),
		StudentAnswer: r.FormValue("student_answer"),
		CorrectAnswer: r.FormValue("correct_answer"),
		DriveLink:     r.FormValue("drive_link"),
		MaxScore:      h.config.DefaultMaxScore,
	}
	if in.Difficulty == "" {
		in.Difficulty = h.config.DefaultDifficulty
	}
	if s := strings.TrimSpace(r.FormValue("max_score")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			n = 0
		}
		in.MaxScore = n
	}
	return in
}

func (in gradeInput) form() views.GradeForm {
	mode := in.Mode
	if !validMode(mode) {
		mode = model.ModeText
	}
	return views.GradeForm{
		Mode:          mode,
		Question:      in.Question,
		StudentAnswer: in.StudentAnswer,
		CorrectAnswer: in.CorrectAnswer,
		DriveLink:     in.DriveLink,
		Difficulty:    in.Difficulty,
		MaxScore:      in.MaxScore,
	}
}

func parseCompanionInput(r *http.Request) companionInput {
	return companionInput{
		Mode:          parseMode(r.FormValue("mode")),
		Question:      r.FormValue("question"),
		StudentAnswer: r.FormValue("student_answer"),
		CorrectAnswer: r.FormValue("correct_answer"),
		DriveLink:     r.FormValue("drive_link"),
	}
}

func (in companionInput) form() views.StudentForm {
	mode := in.Mode
	if !validMode(mode) {
		mode = model.ModeText
	}
	return views.StudentForm{
		Mode:          mode,
		Question:      in.Question,
		StudentAnswer: in.StudentAnswer,
		CorrectAnswer: in.CorrectAnswer,
		DriveLink:     in.DriveLink,
	}
}

// readUpload returns the "file" part of a multipart form, or nil when the
// form has none. Bytes are passed on unchanged.
func readUpload(r *http.Request) (*backend.Upload, error) {
	f, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 && header.Filename == "" {
		return nil, nil
	}

	ct := header.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = mimetype.Detect(data).String()
	}
	return &backend.Upload{Name: header.Filename, ContentType: ct, Data: data}, nil
}

// uploadText returns the text of plain-text uploads so the segmenter can run
// on them. Other formats are only readable by the backend.
func uploadText(u *backend.Upload) string {
	switch strings.ToLower(filepath.Ext(u.Name)) {
	case ".txt", ".json":
		return strings.ToValidUTF8(string(u.Data), "")
	}
	return ""
}
