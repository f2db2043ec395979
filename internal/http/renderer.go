package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
)

// TemplateRenderer renders HTML pages for UI responses.
// Each page template is parsed together with the layout and partials into its own set,
// so every page can define its own "content" block.
type TemplateRenderer struct {
	fsys    fs.FS
	devMode bool
	logger  *slog.Logger

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // Filesystem containing layout.tmpl, partials/ and pages/ (required)
	DevMode    bool         // Re-parse templates on every render
	Logger     *slog.Logger // Logger for template errors (optional)
}

// NewTemplateRenderer constructs a renderer by parsing templates from the provided config.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &TemplateRenderer{fsys: cfg.TemplateFS, devMode: cfg.DevMode, logger: logger}
	pages, err := parsePages(cfg.TemplateFS)
	if err != nil {
		logger.Error("template parsing failed",
			slog.Any("error", err),
			slog.String("phase", "initialization"),
		)
		return nil, err
	}
	r.pages = pages
	return r, nil
}

func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	base, err := template.New("root").ParseFS(fsys, "layout.tmpl", "partials/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(fsys, "pages/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no page templates found")
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		set, cloneErr := base.Clone()
		if cloneErr != nil {
			return nil, fmt.Errorf("clone layout: %w", cloneErr)
		}
		if _, parseErr := set.ParseFS(fsys, file); parseErr != nil {
			return nil, fmt.Errorf("parse %s: %w", file, parseErr)
		}
		pages[strings.TrimSuffix(path.Base(file), ".tmpl")] = set
	}
	return pages, nil
}

// HasPage reports whether a page template with the given name was loaded.
func (r *TemplateRenderer) HasPage(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pages[name]
	return ok
}

// RenderFull renders the full page (layout + page content) with the given status.
func (r *TemplateRenderer) RenderFull(w http.ResponseWriter, status int, page string, data any) error {
	return r.render(w, renderParams{status: status, page: page, block: "layout"}, data)
}

// RenderPartial renders only the main content area.
func (r *TemplateRenderer) RenderPartial(w http.ResponseWriter, status int, page string, data any) error {
	return r.render(w, renderParams{status: status, page: page, block: "content"}, data)
}

// Render picks the partial for htmx requests and the full layout otherwise.
func (r *TemplateRenderer) Render(w http.ResponseWriter, req *http.Request, status int, page string, data any) error {
	if WantsPartial(req) {
		return r.RenderPartial(w, status, page, data)
	}
	return r.RenderFull(w, status, page, data)
}

type renderParams struct {
	status int
	page   string
	block  string
}

func (r *TemplateRenderer) render(w http.ResponseWriter, p renderParams, data any) error {
	set, err := r.lookup(p.page)
	if err != nil {
		r.logger.Error("template lookup failed", slog.String("page", p.page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}

	// Execute into a buffer so a template error never leaves a half-written page.
	var buf bytes.Buffer
	if err = set.ExecuteTemplate(&buf, p.block, data); err != nil {
		r.logger.Error("template execution failed",
			slog.String("page", p.page),
			slog.String("template", p.block),
			slog.Any("error", err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}

	if p.status == 0 {
		p.status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(p.status)
	if _, err = buf.WriteTo(w); err != nil {
		r.logger.Error("failed to write rendered template",
			slog.String("page", p.page),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

func (r *TemplateRenderer) lookup(page string) (*template.Template, error) {
	if r.devMode {
		pages, err := parsePages(r.fsys)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.pages = pages
		r.mu.Unlock()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.pages[page]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", page)
	}
	return set, nil
}
