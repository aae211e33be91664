package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/xaminai/internal/backend"
	"github.com/pavelanni/xaminai/internal/handler"
	appI18n "github.com/pavelanni/xaminai/internal/i18n"
	"github.com/pavelanni/xaminai/internal/model"
	"github.com/pavelanni/xaminai/internal/segment"
	"github.com/pavelanni/xaminai/internal/store"
)

//go:generate templ generate -path ../../internal/handler/views

func main() {
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error reading .env file", "error", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xaminai",
		Short: "Exam grading and study companion frontend",
	}

	serve := serveCmd()
	root.AddCommand(serve, segmentCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `xaminai --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP frontend",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "xaminai.db", "SQLite database path for graded results")
	f.String("backend-url", "http://127.0.0.1:8000", "Grading backend base URL")
	f.Duration("backend-timeout", 120*time.Second, "Timeout for a single backend request")
	f.Bool("skip-backend-check", false, "Start even if the backend does not answer the startup ping")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /xaminai)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.Int64("max-upload-mb", 20, "Maximum upload size in megabytes")
	f.String("default-difficulty", string(model.DifficultyMedium), "Preselected difficulty (easy, medium, hard)")
	f.Int("default-max-score", 5, "Preselected maximum score (1-20)")
	f.String("pdf-font", "", "TrueType font for PDF reports; needed for non-Latin text")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func segmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment [file]",
		Short: "Detect the question and answer in a text file (or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSegment,
	}
	f := cmd.Flags()
	f.Bool("keywords", false, "Print the question keywords and exit")
	f.Bool("json", false, "Print the result as JSON")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("XAMINAI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("xaminai")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/xaminai")
	v.AddConfigPath("/etc/xaminai")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// normalizeBasePath returns "" or a path with one leading and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	cfg, err := frontendConfig(v)
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	backendURL := v.GetString("backend-url")
	client := backend.New(backendURL, v.GetDuration("backend-timeout"))
	if !v.GetBool("skip-backend-check") {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.Ping(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("backend health check: %w", err)
		}
		slog.Info("backend OK", "url", backendURL)
	}

	h, err := handler.New(db, client, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if cfg.BasePath != "" {
		r.Route(cfg.BasePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(cfg.BasePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, cfg.BasePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"backend_url", backendURL,
		"lang", lang,
		"languages", appI18n.Languages(),
		"base_path", cfg.BasePath,
		"max_upload_bytes", cfg.MaxUploadBytes,
		"default_difficulty", cfg.DefaultDifficulty,
		"default_max_score", cfg.DefaultMaxScore,
		"pdf_font", cfg.PDFFont,
	)
	return http.ListenAndServe(addr, r)
}

// frontendConfig reads and checks the handler settings.
func frontendConfig(v *viper.Viper) (model.Config, error) {
	cfg := model.Config{
		BasePath:          normalizeBasePath(v.GetString("base-path")),
		SecureCookies:     v.GetBool("secure-cookies"),
		MaxUploadBytes:    v.GetInt64("max-upload-mb") << 20,
		DefaultDifficulty: model.Difficulty(strings.ToLower(v.GetString("default-difficulty"))),
		DefaultMaxScore:   v.GetInt("default-max-score"),
		PDFFont:           v.GetString("pdf-font"),
	}
	if !slices.Contains(model.Difficulties, cfg.DefaultDifficulty) {
		return cfg, fmt.Errorf("invalid default-difficulty %q (want easy, medium or hard)", cfg.DefaultDifficulty)
	}
	if cfg.DefaultMaxScore < 1 || cfg.DefaultMaxScore > 20 {
		return cfg, fmt.Errorf("invalid default-max-score %d (want 1-20)", cfg.DefaultMaxScore)
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, fmt.Errorf("invalid max-upload-mb %d", v.GetInt64("max-upload-mb"))
	}
	return cfg, nil
}

func runSegment(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	out := cmd.OutOrStdout()

	if v.GetBool("keywords") {
		for _, kw := range segment.Keywords() {
			fmt.Fprintln(out, kw)
		}
		return nil
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	res := segment.Segment(string(data))
	slog.Debug("segmented input", "bytes", len(data), "question_found", res.Question != segment.QuestionNotDetected)
	return writeSegment(out, res, v.GetBool("json"))
}

func writeSegment(w io.Writer, res segment.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprintf(w, "Question: %s\nAnswer: %s\n", res.Question, res.Answer)
	return err
}
