package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	locale    Locale
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	User        *shared.Principal
	Data        any
}

// Locale controls how dates and numbers are displayed.
type Locale struct {
	Location *time.Location
	Language language.Tag
}

// DefaultLocale is Bangkok time with Thai number formatting.
func DefaultLocale() Locale {
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		loc = time.FixedZone("ICT", 7*60*60)
	}
	return Locale{Location: loc, Language: language.Thai}
}

// NewEngine parses the embedded templates using DefaultLocale.
func NewEngine() (*Engine, error) {
	return NewEngineWithLocale(DefaultLocale())
}

// NewEngineWithLocale parses the embedded templates for locale.
func NewEngineWithLocale(locale Locale) (*Engine, error) {
	if locale.Location == nil {
		locale.Location = DefaultLocale().Location
	}
	if locale.Language == language.Und {
		locale.Language = language.Thai
	}
	tpl, err := template.New("root").Funcs(funcMap(locale)).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*.html",
		"templates/pages/*/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl, locale: locale}, nil
}

// Locale returns the display locale of the engine.
func (e *Engine) Locale() Locale {
	return e.locale
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders into a buffer first so a failing template never
// leaves a half-written page behind.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// ExecuteToString renders a template to a string, used for PDF sources.
func (e *Engine) ExecuteToString(name string, data TemplateData) (string, error) {
	if e == nil {
		return "", fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
