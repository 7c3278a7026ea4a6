// internal/api/handler/web/handler.go
package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
)

//go:embed templates/*
var templateFS embed.FS

// pages lists the page templates rendered inside layout.html.
var pages = []string{"dashboard.html"}

// TickerProvider supplies the chart ticker choices.
type TickerProvider interface {
	StockTickers() []string
	CryptoTickers() []string
	BackendEnabled() bool
}

// Handler provides web UI handlers with template rendering
type Handler struct {
	// pageTemplates holds separate template instances for each page
	// Each instance contains layout.html + the specific page template
	pageTemplates map[string]*template.Template
	tickers       TickerProvider
}

var funcs = template.FuncMap{
	"json": func(v any) (template.JS, error) {
		b, err := json.Marshal(v)
		return template.JS(b), err
	},
}

// NewHandler creates a new web handler with templates loaded from the given directory.
// If templatesDir is empty, it falls back to embedded templates.
func NewHandler(templatesDir string, tickers TickerProvider) (*Handler, error) {
	if templatesDir != "" {
		return newHandler(os.DirFS(templatesDir), tickers)
	}
	subFS, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("accessing embedded templates: %w", err)
	}
	return newHandler(subFS, tickers)
}

// NewHandlerWithFS creates a new web handler using a custom filesystem.
// This is useful for testing or custom template sources.
func NewHandlerWithFS(fsys fs.FS, tickers TickerProvider) (*Handler, error) {
	return newHandler(fsys, tickers)
}

func newHandler(fsys fs.FS, tickers TickerProvider) (*Handler, error) {
	pageTemplates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		// Parse layout first, then the page template
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(fsys, "layout.html", page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		pageTemplates[page] = tmpl
	}
	return &Handler{pageTemplates: pageTemplates, tickers: tickers}, nil
}

// render executes the specified page template with the given data
func (h *Handler) render(w http.ResponseWriter, page string, data any) {
	tmpl, ok := h.pageTemplates[page]
	if !ok {
		http.Error(w, "template not found: "+page, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// TemplateFS returns the embedded template filesystem for external use.
func TemplateFS() fs.FS {
	subFS, err := fs.Sub(templateFS, "templates")
	if err != nil {
		// This should never happen with valid embed directive
		return templateFS
	}
	return subFS
}
