package i18n

import (
	"net/http"

	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// Middleware picks a language per request and injects its localizer into the
// request context. A ?lang= query value wins over Accept-Language; requests
// with neither get the default language.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	locs := make(map[string]*i18n.Localizer)
	for _, t := range supported {
		locs[t.String()] = NewLocalizer(t.String())
	}
	fallback := NewLocalizer(defaultLang)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := fallback
			if q, al := r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"); q != "" || al != "" {
				if l, ok := locs[Negotiate(q, al)]; ok {
					loc = l
				}
			}
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
