package http

import (
	"net/http"
	"time"

	"housefin/internal/core"
)

// JSON views. Amounts are decimal strings with two fractional digits so
// clients never see floating point.
type (
	UserResponse struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		FullName  string    `json:"full_name"`
		HomeID    string    `json:"home_id,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	HomeResponse struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description,omitempty"`
		LeaderID    string   `json:"leader_id"`
		MemberIDs   []string `json:"member_ids"`
	}

	ContributionResponse struct {
		ID          string    `json:"id"`
		HomeID      string    `json:"home_id"`
		UserID      string    `json:"user_id"`
		Amount      string    `json:"amount"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
	}

	MemberAmountResponse struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
		Total    string `json:"total"`
		Count    int    `json:"count"`
		Share    string `json:"share_percent"`
		Former   bool   `json:"former,omitempty"`
	}

	ItemAmountResponse struct {
		Name  string `json:"name"`
		Total string `json:"total"`
		Count int    `json:"count"`
	}

	MonthTotalResponse struct {
		Year  int    `json:"year"`
		Month int    `json:"month"`
		Total string `json:"total"`
		Count int    `json:"count"`
	}

	AnalyticsResponse struct {
		Home     HomeResponse           `json:"home"`
		Total    string                 `json:"total"`
		Count    int                    `json:"count"`
		ByMember []MemberAmountResponse `json:"by_member"`
		ByItem   []ItemAmountResponse   `json:"by_item"`
		Monthly  []MonthTotalResponse   `json:"monthly"`
	}

	DashboardResponse struct {
		Home       HomeResponse           `json:"home"`
		Total      string                 `json:"total"`
		Count      int                    `json:"count"`
		FairShare  string                 `json:"fair_share"`
		MyTotal    string                 `json:"my_total"`
		MyCount    int                    `json:"my_count"`
		MyBalance  string                 `json:"my_balance"`
		Year       int                    `json:"year"`
		Month      int                    `json:"month"`
		MonthTotal string                 `json:"month_total"`
		MonthCount int                    `json:"month_count"`
		ByMember   []MemberAmountResponse `json:"by_member"`
		Recent     []ContributionResponse `json:"recent"`
	}
)

func newUserResponse(u core.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		HomeID:    u.HomeID,
		CreatedAt: u.CreatedAt,
	}
}

func newHomeResponse(h core.Home) HomeResponse {
	members := h.MemberIDs
	if members == nil {
		members = []string{}
	}
	return HomeResponse{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
		LeaderID:    h.LeaderID,
		MemberIDs:   members,
	}
}

func newContributionResponse(c core.Contribution) ContributionResponse {
	return ContributionResponse{
		ID:          c.ID,
		HomeID:      c.HomeID,
		UserID:      c.UserID,
		Amount:      core.FormatAmount(c.Amount),
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
}

func newContributionResponses(cs []core.Contribution) []ContributionResponse {
	out := make([]ContributionResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, newContributionResponse(c))
	}
	return out
}

func newMemberAmountResponses(rows []core.MemberAmount) []MemberAmountResponse {
	out := make([]MemberAmountResponse, 0, len(rows))
	for _, m := range rows {
		out = append(out, MemberAmountResponse{
			UserID:   m.UserID,
			Username: m.Username,
			Total:    core.FormatAmount(m.Total),
			Count:    m.Count,
			Share:    m.Share.StringFixed(1),
			Former:   m.Former,
		})
	}
	return out
}

func newAnalyticsResponse(a core.Analytics) AnalyticsResponse {
	items := make([]ItemAmountResponse, 0, len(a.ByItem))
	for _, it := range a.ByItem {
		items = append(items, ItemAmountResponse{Name: it.Name, Total: core.FormatAmount(it.Total), Count: it.Count})
	}
	monthly := make([]MonthTotalResponse, 0, len(a.Monthly))
	for _, m := range a.Monthly {
		monthly = append(monthly, MonthTotalResponse{Year: m.Year, Month: m.Month, Total: core.FormatAmount(m.Total), Count: m.Count})
	}
	return AnalyticsResponse{
		Home:     newHomeResponse(a.Home),
		Total:    core.FormatAmount(a.Total),
		Count:    a.Count,
		ByMember: newMemberAmountResponses(a.ByMember),
		ByItem:   items,
		Monthly:  monthly,
	}
}

func newDashboardResponse(d core.Dashboard) DashboardResponse {
	byMember := newMemberAmountResponses(d.ByMember)
	return DashboardResponse{
		Home:       newHomeResponse(d.Home),
		Total:      core.FormatAmount(d.Total),
		Count:      d.Count,
		FairShare:  core.FormatAmount(d.FairShare),
		MyTotal:    core.FormatAmount(d.MyTotal),
		MyCount:    d.MyCount,
		MyBalance:  core.FormatAmount(d.MyBalance),
		Year:       d.Year,
		Month:      d.Month,
		MonthTotal: core.FormatAmount(d.MonthTotal),
		MonthCount: d.MonthCount,
		ByMember:   byMember,
		Recent:     newContributionResponses(d.Recent),
	}
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.contributions.Dashboard(r.Context(), currentUser(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(newDashboardResponse(d)).Write(w)
}

func (s *Server) handleAPIContributions(w http.ResponseWriter, r *http.Request) {
	hc, err := s.contributions.List(r.Context(), currentUser(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(newContributionResponses(hc.Contributions)).Write(w)
}

func (s *Server) handleAPIAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.contributions.Analytics(r.Context(), currentUser(r), core.TrendMonths)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(newAnalyticsResponse(a)).Write(w)
}

func (s *Server) handleAPIMe(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(newUserResponse(currentUser(r))).Write(w)
}
