package http

import (
	"net/http"

	"housefin/internal/core"
)

// handleAddContribution records a contribution for the caller's home.
// Form posts redirect to the dashboard; JSON posts get the stored
// contribution back with 201.
func (s *Server) handleAddContribution(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}

	amountRaw := p.Get("amount")
	// product_name is what older forms post.
	desc := p.GetFirst("description", "product_name")

	var c core.Contribution
	amount, err := core.ParseAmount(amountRaw)
	if err == nil {
		c, err = s.contributions.Add(r.Context(), currentUser(r), core.ContributionInput{
			Amount:      amount,
			Description: desc,
		})
	}
	if err != nil {
		if msg := formError(err); msg != "" && !p.IsJSON() && !wantsJSON(r) {
			s.renderDashboard(w, r, http.StatusUnprocessableEntity, dashboardPage{
				Form: contributionForm{Amount: amountRaw, Description: desc, Error: msg},
			})
			return
		}
		s.writeError(w, r, err)
		return
	}

	if p.IsJSON() || wantsJSON(r) {
		NewResponse().
			Status(http.StatusCreated).
			Header("Location", "/api/contributions").
			JSON(newContributionResponse(c)).
			Write(w)
		return
	}
	redirectWithMessage(w, r, "/dashboard", "Contribution added")
}

type contributionsPage struct {
	Page
	Home          core.Home
	Total         string
	Contributions []ContributionRow
}

func (s *Server) handleContributions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if !user.HasHome() {
		redirectWithMessage(w, r, "/dashboard", core.ErrNoHome.Error())
		return
	}

	hc, err := s.contributions.List(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "contributions.html", contributionsPage{
		Page:          Page{Title: "All contributions", User: &user},
		Home:          hc.Home,
		Total:         formatMoney(core.SumAmounts(hc.Contributions)),
		Contributions: contributionRows(hc.Contributions, hc.Members, user.ID),
	})
}

type monthlyPage struct {
	Page
	Summary       core.MonthSummary
	Months        []MonthOption
	Contributions []ContributionRow
}

// handleMonthlyContributions shows one month of the caller's home with
// by-member and by-item breakdowns. Without ?year=&month= it shows the
// current month.
func (s *Server) handleMonthlyContributions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if !user.HasHome() {
		redirectWithMessage(w, r, "/dashboard", core.ErrNoHome.Error())
		return
	}

	params, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.contributions.Month(r.Context(), user, params.Year, params.Month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	members, err := s.households.Members(r.Context(), user.HomeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "monthly.html", monthlyPage{
		Page:          Page{Title: "Monthly contributions", User: &user},
		Summary:       summary,
		Months:        monthOptions(s.contributions.RecentMonths(12), summary.Year, summary.Month),
		Contributions: contributionRows(summary.Contributions, members, user.ID),
	})
}
