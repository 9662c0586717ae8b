package pages

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler renders the application shell pages.
type Handler struct {
	logger    *slog.Logger
	templates *template.Template
}

// NewHandler creates a new pages handler.
func NewHandler(logger *slog.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Handler{
		logger:    logger,
		templates: tmpl,
	}, nil
}

// PageData holds data for template rendering.
type PageData struct {
	Title   string
	Section string
}

// Login renders the sign-in page.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", PageData{Title: "Inloggen"})
}

// Setup renders the onboarding wizard.
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	h.render(w, "setup.html", PageData{Title: "Instellen"})
}

// Dashboard renders the dashboard shell. Sub paths such as
// /dashboard/invoices select a section.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	section := strings.Trim(strings.TrimPrefix(r.URL.Path, "/dashboard"), "/")
	h.render(w, "dashboard.html", PageData{Title: "Dashboard", Section: section})
}

func (h *Handler) render(w http.ResponseWriter, tmpl string, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, tmpl, data); err != nil {
		h.logger.Error("failed to render page", "template", tmpl, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
