package http

import (
	"net/http"

	"housefin/internal/core"
	applog "housefin/internal/log"
)

type contributionForm struct {
	Amount      string
	Description string
	Error       string
}

type homeForm struct {
	Name        string
	Description string
	JoinName    string
	Error       string
}

type dashboardPage struct {
	Page
	HasHome   bool
	IsLeader  bool
	Dashboard core.Dashboard
	Recent    []ContributionRow
	Form      contributionForm
	HomeForm  homeForm
}

// handleDashboard renders the statistics of the caller's home, or the
// create/join forms for users without one.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.renderDashboard(w, r, http.StatusOK, dashboardPage{
		Page: Page{Message: flashMessage(r)},
	})
}

// renderDashboard loads fresh statistics and renders the dashboard with
// whatever form state data already carries. An unreachable store renders
// the page in degraded mode with 503.
func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, data dashboardPage) {
	ctx := r.Context()
	user := currentUser(r)
	data.Title = "Dashboard"
	data.User = &user
	data.HasHome = user.HasHome()

	if data.HasHome {
		d, err := s.contributions.Dashboard(ctx, user)
		switch {
		case err == nil:
			data.Dashboard = d
			data.IsLeader = d.Home.LeaderID == user.ID
			data.Recent = contributionRows(d.Recent, d.Members, user.ID)
		case statusFor(err) == http.StatusServiceUnavailable:
			applog.FromContext(ctx).WithComponent(applog.ComponentHTTP).ErrorContext(ctx,
				"Dashboard degraded", errFields(err)...)
			data.Degraded = true
			data.Error = unavailableMessage
			status = http.StatusServiceUnavailable
		default:
			s.writeError(w, r, err)
			return
		}
	}

	s.render(w, r, status, "dashboard.html", data)
}
