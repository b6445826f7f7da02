package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"time"

	"github.com/shopspring/decimal"

	"housefin/internal/core"
	applog "housefin/internal/log"
	appweb "housefin/web"
)

const layoutTemplate = "layout.html"

var templateFuncs = template.FuncMap{
	"money":      formatMoney,
	"signed":     formatSigned,
	"date":       formatDate,
	"datetime":   formatDateTime,
	"monthName":  monthName,
	"isNegative": decimal.Decimal.IsNegative,
}

func formatMoney(d decimal.Decimal) string {
	return "€" + core.FormatAmount(d)
}

// formatSigned renders balances with an explicit sign.
func formatSigned(d decimal.Decimal) string {
	switch {
	case d.IsPositive():
		return "+€" + core.FormatAmount(d)
	case d.IsNegative():
		return "-€" + core.FormatAmount(d.Neg())
	}
	return formatMoney(d)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02 Jan 2006")
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format("02 Jan 2006 15:04")
}

func monthName(m int) string {
	return time.Month(m).String()
}

// parseTemplates parses every page under web/templates together with the
// shared layout. Each page defines "content" and may override "title".
func parseTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	layout, err := template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(fsys, "templates/"+layoutTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	out := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		name := path.Base(p)
		if name == layoutTemplate {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(fsys, p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

func defaultTemplates() (map[string]*template.Template, error) {
	return parseTemplates(appweb.TemplatesFS)
}

// render executes page into a buffer so a failing template never leaves a
// half-written response behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	t, ok := s.templates[page]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Template not found",
			"template", page, applog.FieldErrorType, applog.ErrorTypeConfiguration)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(),
			"Template execution failed",
			"template", page,
			applog.FieldError, err.Error(),
			applog.FieldOperation, applog.OpRender)
		http.Error(w, "error rendering page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Page carries what the layout needs on every page.
type Page struct {
	Title    string
	User     *core.User
	Message  string
	Error    string
	Degraded bool
}

// ContributionRow is a contribution joined with its member's display name.
type ContributionRow struct {
	ID          string
	CreatedAt   time.Time
	Member      string
	Description string
	Amount      decimal.Decimal
	Mine        bool
}

func contributionRows(cs []core.Contribution, members []core.User, viewerID string) []ContributionRow {
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = displayName(m)
	}
	rows := make([]ContributionRow, 0, len(cs))
	for _, c := range cs {
		name, ok := names[c.UserID]
		if !ok {
			name = "former member"
		}
		rows = append(rows, ContributionRow{
			ID:          c.ID,
			CreatedAt:   c.CreatedAt,
			Member:      name,
			Description: c.Description,
			Amount:      c.Amount,
			Mine:        c.UserID == viewerID,
		})
	}
	return rows
}

func displayName(u core.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// MonthOption is one entry of the month selector.
type MonthOption struct {
	Year     int
	Month    int
	Label    string
	Selected bool
}

func monthOptions(months []time.Time, year, month int) []MonthOption {
	out := make([]MonthOption, 0, len(months))
	for _, m := range months {
		out = append(out, MonthOption{
			Year:     m.Year(),
			Month:    int(m.Month()),
			Label:    m.Format("January 2006"),
			Selected: m.Year() == year && int(m.Month()) == month,
		})
	}
	return out
}
