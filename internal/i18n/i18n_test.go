package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "Xaminai" {
		t.Errorf("T(AppTitle) = %q, want 'Xaminai'", got)
	}
	if got := T(ctx, "NeedsImprovement"); got != "Needs Improvement" {
		t.Errorf("T(NeedsImprovement) = %q, want 'Needs Improvement'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "Grade"); got != "Оценить" {
		t.Errorf("T(Grade) = %q, want 'Оценить'", got)
	}
	if got := T(ctx, "Excellent"); got != "Отлично" {
		t.Errorf("T(Excellent) = %q, want 'Отлично'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "HistoryCount", 1); got != "1 graded answer" {
		t.Errorf("Tp(HistoryCount, 1) = %q, want '1 graded answer'", got)
	}
	if got := Tp(ctx, "HistoryCount", 5); got != "5 graded answers" {
		t.Errorf("Tp(HistoryCount, 5) = %q, want '5 graded answers'", got)
	}
}

func TestRussianPluralForms(t *testing.T) {
	ctx := initLang(t, "ru")

	tests := []struct {
		count int
		want  string
	}{
		{1, "1 проверенный ответ"},
		{3, "3 проверенных ответа"},
		{5, "5 проверенных ответов"},
		{21, "21 проверенный ответ"},
	}
	for _, tt := range tests {
		if got := Tp(ctx, "HistoryCount", tt.count); got != tt.want {
			t.Errorf("Tp(HistoryCount, %d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ScoreOutOf", map[string]any{"Score": "3.5", "Max": 5})
	if got != "3.5 / 5" {
		t.Errorf("Td(ScoreOutOf) = %q, want '3.5 / 5'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestNegotiate(t *testing.T) {
	initLang(t, "en")

	tests := []struct {
		name  string
		prefs []string
		want  string
	}{
		{"no preference", nil, "en"},
		{"accept-language ru", []string{"", "ru-RU,ru;q=0.9,en;q=0.8"}, "ru"},
		{"query overrides header", []string{"en", "ru"}, "en"},
		{"unsupported falls back", []string{"", "fr-FR"}, "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Negotiate(tt.prefs...); got != tt.want {
				t.Errorf("Negotiate(%q) = %q, want %q", tt.prefs, got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Grade")
	}))

	tests := []struct {
		name   string
		target string
		accept string
		want   string
	}{
		{"default", "/", "", "Grade"},
		{"header", "/", "ru", "Оценить"},
		{"query", "/?lang=ru", "en-US", "Оценить"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
