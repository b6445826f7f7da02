package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"housefin/internal/core"
	applog "housefin/internal/log"
)

// TrendRow is one month of the analytics trend with its size relative to
// the busiest month shown.
type TrendRow struct {
	Year    int
	Month   int
	Total   decimal.Decimal
	Count   int
	Percent int
}

type analyticsPage struct {
	Page
	Analytics core.Analytics
	Trend     []TrendRow
}

func trendRows(monthly []core.MonthTotal) []TrendRow {
	peak := decimal.Zero
	for _, m := range monthly {
		if m.Total.GreaterThan(peak) {
			peak = m.Total
		}
	}
	rows := make([]TrendRow, 0, len(monthly))
	for _, m := range monthly {
		row := TrendRow{Year: m.Year, Month: m.Month, Total: m.Total, Count: m.Count}
		if peak.IsPositive() {
			row.Percent = int(m.Total.Mul(hundredPercent).Div(peak).Round(0).IntPart())
		}
		rows = append(rows, row)
	}
	return rows
}

var hundredPercent = decimal.NewFromInt(100)

// handleAnalytics shows the all-time breakdown of the caller's home with
// a month-by-month trend. An unreachable store renders the page degraded.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	if !user.HasHome() {
		redirectWithMessage(w, r, "/dashboard", core.ErrNoHome.Error())
		return
	}

	data := analyticsPage{Page: Page{Title: "Analytics", User: &user}}
	status := http.StatusOK

	a, err := s.contributions.Analytics(ctx, user, core.TrendMonths)
	switch {
	case err == nil:
		data.Analytics = a
		data.Trend = trendRows(a.Monthly)
	case statusFor(err) == http.StatusServiceUnavailable:
		applog.FromContext(ctx).WithComponent(applog.ComponentHTTP).ErrorContext(ctx,
			"Analytics degraded", errFields(err)...)
		data.Degraded = true
		data.Error = unavailableMessage
		status = http.StatusServiceUnavailable
	default:
		s.writeError(w, r, err)
		return
	}

	s.render(w, r, status, "analytics.html", data)
}
