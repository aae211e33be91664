// Package views renders the HTML pages of the frontend as templ components.
package views

import (
	"bytes"
	"context"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	appI18n "github.com/pavelanni/xaminai/internal/i18n"
	"github.com/pavelanni/xaminai/internal/model"
	"github.com/pavelanni/xaminai/internal/report"
	"github.com/pavelanni/xaminai/internal/segment"
)

const dateLayout = "2006-01-02 15:04"

// GradeForm holds the examiner form values for re-rendering.
type GradeForm struct {
	Mode          model.Mode
	Question      string
	StudentAnswer string
	CorrectAnswer string
	DriveLink     string
	Difficulty    model.Difficulty
	MaxScore      int
	Error         string
}

// ResultData is everything the result page shows for one graded answer.
type ResultData struct {
	Result     model.GradedResult
	Detected   segment.Result
	Evaluation model.Evaluation
}

// RecentResult is a row in the examiner page's recent results table.
type RecentResult struct {
	Result     model.GradedResult
	Question   string
	Evaluation model.Evaluation
}

// StudentForm holds the companion form values for re-rendering.
type StudentForm struct {
	Mode          model.Mode
	Question      string
	StudentAnswer string
	CorrectAnswer string
	DriveLink     string
	Error         string
}

func tr(ctx context.Context, id string) string {
	return appI18n.T(ctx, id)
}

// pageTitle appends the application name unless title already is it.
func pageTitle(ctx context.Context, title string) string {
	app := tr(ctx, "AppTitle")
	if title == "" || title == app {
		return app
	}
	return title + " | " + app
}

// urlFor prefixes p with the deployment base path.
func urlFor(ctx context.Context, p string) templ.SafeURL {
	return templ.SafeURL(model.BasePathFromContext(ctx) + p)
}

func ariaCurrent(active bool) string {
	if active {
		return "page"
	}
	return "false"
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithXHTML(),
	),
)

// Markdown converts feedback text to HTML. Raw HTML in the source is
// dropped by the renderer.
func Markdown(src string) string {
	var out bytes.Buffer
	if err := md.Convert([]byte(src), &out); err != nil {
		return "<p>" + templ.EscapeString(src) + "</p>"
	}
	return out.String()
}

var modeKeys = map[model.Mode]string{
	model.ModeText:  "ModeText",
	model.ModeFile:  "ModeFile",
	model.ModeImage: "ModeImage",
	model.ModeDrive: "ModeDrive",
}

func modeLabel(ctx context.Context, m model.Mode) string {
	if k, ok := modeKeys[m]; ok {
		return tr(ctx, k)
	}
	return string(m)
}

var difficultyKeys = map[model.Difficulty]string{
	model.DifficultyEasy:   "DifficultyEasy",
	model.DifficultyMedium: "DifficultyMedium",
	model.DifficultyHard:   "DifficultyHard",
}

func difficultyLabel(ctx context.Context, d model.Difficulty) string {
	if k, ok := difficultyKeys[d]; ok {
		return tr(ctx, k)
	}
	return string(d)
}

func scoreOutOf(ctx context.Context, score float64, maxScore int) string {
	return appI18n.Td(ctx, "ScoreOutOf", map[string]any{"Score": report.FormatScore(score), "Max": maxScore})
}

// historyScore drops the "/ max" part for rows recorded without a maximum.
func historyScore(ctx context.Context, e model.HistoryEntry) string {
	if e.MaxScore <= 0 {
		return report.FormatScore(e.Score)
	}
	return scoreOutOf(ctx, e.Score, e.MaxScore)
}

func entryDate(e model.HistoryEntry) string {
	if t, ok := e.CreatedTime(); ok {
		return t.Format(dateLayout)
	}
	return e.CreatedAt
}
