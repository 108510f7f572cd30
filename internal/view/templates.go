package view

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/catalog/internal/shared"
	"github.com/odyssey-erp/catalog/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Data        any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	printer := message.NewPrinter(language.English)
	funcMap := sprig.HtmlFuncMap()
	for name, fn := range (template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatPrice": func(d decimal.Decimal) string {
			return formatPrice(printer, d)
		},
		"hasError": func(errs map[string][]string, field string) bool {
			return len(errs[field]) > 0
		},
		"firstError": func(errs map[string][]string, field string) string {
			if len(errs[field]) == 0 {
				return ""
			}
			return errs[field][0]
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}) {
		funcMap[name] = fn
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// formatPrice groups the integer digits of d rounded to cents.
func formatPrice(printer *message.Printer, d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")
	sign := ""
	if strings.HasPrefix(whole, "-") {
		sign, whole = "-", whole[1:]
	}
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return fixed
	}
	return sign + printer.Sprintf("%d", n) + "." + cents
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// RenderStatus writes status before rendering. Headers must be complete before the call.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return e.templates.ExecuteTemplate(w, name, data)
}
