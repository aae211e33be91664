package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	appI18n "github.com/pavelanni/xaminai/internal/i18n"
	"github.com/pavelanni/xaminai/internal/model"
)

const (
	csrfCookieName = "csrf_token"
	csrfFormField  = "csrf_token"

	// formOverhead is allowed on top of the upload limit for the other
	// form fields and multipart framing.
	formOverhead = 1 << 20

	// multipartMemory is how much of a multipart body is kept in memory;
	// the rest spills to temporary files.
	multipartMemory = 8 << 20
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// csrfMiddleware issues a double-submit token on safe requests and checks it
// on everything else. The token is not rotated on POST so that htmx
// fragments and re-rendered forms keep working with the same cookie.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			token, err := generateCSRFToken()
			if err != nil {
				slog.Error("failed to generate CSRF token", "error", err)
				http.Error(w, appI18n.T(r.Context(), "ErrInternal"), http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     csrfCookieName,
				Value:    token,
				Path:     h.cookiePath(),
				HttpOnly: false,
				Secure:   h.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
			ctx := model.ContextWithCSRFToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			http.Error(w, appI18n.T(r.Context(), "ErrCSRF"), http.StatusForbidden)
			return
		}

		// The form has to be parsed here to read the token, so the upload
		// limit is enforced here too.
		if err := h.parseForm(w, r); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				slog.Warn("request body too large", "path", r.URL.Path, "limit", tooLarge.Limit)
				http.Error(w, appI18n.T(r.Context(), "ErrFileTooLarge"), http.StatusRequestEntityTooLarge)
				return
			}
			slog.Warn("failed to parse form", "path", r.URL.Path, "error", err)
			http.Error(w, appI18n.T(r.Context(), "ErrBadForm"), http.StatusBadRequest)
			return
		}

		formToken := r.FormValue(csrfFormField)
		if formToken == "" {
			slog.Warn("CSRF form token missing", "path", r.URL.Path)
			http.Error(w, appI18n.T(r.Context(), "ErrCSRF"), http.StatusForbidden)
			return
		}

		if len(formToken) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(formToken), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			http.Error(w, appI18n.T(r.Context(), "ErrCSRF"), http.StatusForbidden)
			return
		}

		ctx := model.ContextWithCSRFToken(r.Context(), cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	if h.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes+formOverhead)
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}
