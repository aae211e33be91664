// Package report renders a graded result as a one-page PDF summary.
package report

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/pavelanni/xaminai/internal/model"
	"github.com/pavelanni/xaminai/internal/segment"
)

// FileName is the attachment name used for downloads.
const FileName = "exam_result.pdf"

const (
	marginLeft = 20.0
	textWidth  = 170.0
	ruleRight  = 190.0
	coreFont   = "Arial"
	utf8Font   = "Body"
)

// Renderer renders graded results as PDF. The zero value uses the built-in
// Arial core font, which only covers cp1252: other scripts print as "?".
type Renderer struct {
	fontTTF []byte
}

// NewRenderer returns a Renderer that embeds the TrueType font at fontFile so
// any script in the feedback can be printed. An empty fontFile keeps the core
// font.
func NewRenderer(fontFile string) (*Renderer, error) {
	if fontFile == "" {
		return &Renderer{}, nil
	}
	data, err := os.ReadFile(fontFile)
	if err != nil {
		return nil, fmt.Errorf("read pdf font: %w", err)
	}
	return &Renderer{fontTTF: data}, nil
}

// ResultPDF renders the marks summary and feedback for r. detected holds the
// question and answer shown on the result page.
func (rd *Renderer) ResultPDF(r model.GradedResult, detected segment.Result) ([]byte, error) {
	return rd.render(r, detected, true)
}

func (rd *Renderer) render(r model.GradedResult, detected segment.Result, compress bool) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compress)
	pdf.SetTitle("Exam Grading Result", true)
	pdf.SetMargins(marginLeft, 20, marginLeft)
	pdf.SetAutoPageBreak(true, 20)

	font := coreFont
	// Core fonts are cp1252; translate so dashes and accents survive.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if len(rd.fontTTF) > 0 {
		pdf.AddUTF8FontFromBytes(utf8Font, "", rd.fontTTF)
		font = utf8Font
		tr = func(s string) string { return s }
	}
	pdf.AddPage()

	pdf.SetFont(font, "", 16)
	pdf.Text(marginLeft, 20, tr("Exam Grading Result"))

	pdf.SetFont(font, "", 11)
	pdf.Text(marginLeft, 35, tr("Difficulty: "+string(r.Difficulty)))
	pdf.Text(marginLeft, 42, tr("Max Score: "+strconv.Itoa(r.MaxScore)))
	pdf.Line(marginLeft, 48, ruleRight, 48)

	pdf.SetFont(font, "", 12)
	pdf.Text(marginLeft, 58, tr("Marks Summary"))

	pdf.SetFont(font, "", 11)
	pdf.Text(marginLeft, 70, tr("Sr No: 1"))

	pdf.SetXY(marginLeft, 74)
	pdf.MultiCell(textWidth, 5, tr("Question: "+questionText(detected)), "", "L", false)
	pdf.Ln(3)
	pdf.MultiCell(textWidth, 5, tr("Answer: "+answerText(r, detected)), "", "L", false)
	pdf.Ln(3)
	pdf.MultiCell(textWidth, 5, tr(fmt.Sprintf("Marks Awarded: %s / %d", FormatScore(r.Score), r.MaxScore)), "", "L", false)

	y := pdf.GetY() + 4
	pdf.Line(marginLeft, y, ruleRight, y)

	pdf.SetXY(marginLeft, y+6)
	pdf.SetFont(font, "", 12)
	pdf.CellFormat(textWidth, 6, tr("Feedback"), "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 11)
	pdf.MultiCell(textWidth, 5, tr(r.Feedback), "", "L", false)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func questionText(d segment.Result) string {
	if usable(d.Question) {
		return d.Question
	}
	return "Submitted question"
}

// answerText falls back to the uploaded file name when no answer text is known.
func answerText(r model.GradedResult, d segment.Result) string {
	if usable(d.Answer) {
		return d.Answer
	}
	if r.FileName != "" {
		return r.FileName
	}
	return "Submitted answer"
}

func usable(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != segment.NoContent
}

// FormatScore prints a score without trailing zeros ("4", "3.5").
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
