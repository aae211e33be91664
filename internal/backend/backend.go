// Package backend talks to the external grading service. Requests are
// forwarded as-is; all grading happens on the other side.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/xaminai/internal/model"
)

// maxErrorBody caps how much of an error response is kept for logging.
const maxErrorBody = 4 << 10

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// Upload is a file to forward in a multipart request.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Client wraps HTTP access to the grading backend.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a new backend client.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewWithHTTPClient creates a client that uses hc for transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// Ping checks that the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/docs", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping backend: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: "ping", StatusCode: resp.StatusCode}
	}
	return nil
}

// Grade submits a typed question and answer for grading.
func (c *Client) Grade(ctx context.Context, in model.GradeRequest) (*model.GradeResult, error) {
	var out model.GradeResult
	if err := c.postJSON(ctx, "grade", "/grade", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GradeFile uploads a document (pdf, docx, txt, json) for grading.
func (c *Client) GradeFile(ctx context.Context, f Upload, maxScore int, difficulty model.Difficulty) (*model.GradeResult, error) {
	var out model.GradeResult
	if err := c.postFile(ctx, "grade file", "/grade/file", gradeQuery(maxScore, difficulty), f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GradeImage uploads a photo of an answer for grading.
func (c *Client) GradeImage(ctx context.Context, f Upload, maxScore int, difficulty model.Difficulty) (*model.GradeResult, error) {
	var out model.GradeResult
	if err := c.postFile(ctx, "grade image", "/grade/image", gradeQuery(maxScore, difficulty), f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GradeDrive asks the backend to fetch and grade a Google Drive file.
func (c *Client) GradeDrive(ctx context.Context, fileID string, maxScore int, difficulty model.Difficulty) (*model.GradeResult, error) {
	q := gradeQuery(maxScore, difficulty)
	q.Set("file_id", fileID)
	var out model.GradeResult
	if err := c.postJSON(ctx, "grade drive", "/grade/drive", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Companion requests study guidance for a typed answer.
func (c *Client) Companion(ctx context.Context, in model.CompanionRequest) (*model.CompanionFeedback, error) {
	var out model.CompanionFeedback
	if err := c.postJSON(ctx, "companion", "/companion", nil, in, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	return &out, nil
}

// CompanionFile requests study guidance for an uploaded document.
func (c *Client) CompanionFile(ctx context.Context, f Upload) (*model.CompanionFeedback, error) {
	var out model.CompanionFeedback
	if err := c.postFile(ctx, "companion file", "/companion/file", nil, f, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	return &out, nil
}

// CompanionImage requests study guidance for a photo of an answer.
func (c *Client) CompanionImage(ctx context.Context, f Upload) (*model.CompanionFeedback, error) {
	var out model.CompanionFeedback
	if err := c.postFile(ctx, "companion image", "/companion/image", nil, f, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	return &out, nil
}

// CompanionDrive requests study guidance for a Google Drive file.
func (c *Client) CompanionDrive(ctx context.Context, fileID string) (*model.CompanionFeedback, error) {
	q := url.Values{}
	q.Set("file_id", fileID)
	var out model.CompanionFeedback
	if err := c.postJSON(ctx, "companion drive", "/companion/drive", q, nil, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	return &out, nil
}

// History returns the backend's grading history, newest first.
func (c *Client) History(ctx context.Context) ([]model.HistoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/dashboard/history", nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	var out []model.HistoryEntry
	if err := c.do(req, "history", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func gradeQuery(maxScore int, difficulty model.Difficulty) url.Values {
	q := url.Values{}
	q.Set("max_score", strconv.Itoa(maxScore))
	q.Set("difficulty", string(difficulty))
	return q
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// postJSON sends body as JSON (or an empty body when nil) and decodes the reply into out.
func (c *Client) postJSON(ctx context.Context, op, path string, q url.Values, body, out any) error {
	var rdr io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, q), rdr)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, op, out)
}

func (c *Client) postFile(ctx context.Context, op, path string, q url.Values, f Upload, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(fileHeader(f))
	if err != nil {
		return fmt.Errorf("%s: create form part: %w", op, err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("%s: write form part: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%s: close form: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, q), &buf)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	slog.Debug("backend response", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: parse response: %w (raw: %s)", op, err, truncate(string(raw), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
