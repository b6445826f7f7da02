package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// RecentLimit is the number of contributions shown on the dashboard.
	RecentLimit = 10
	// TrendMonths is the number of months in the analytics trend.
	TrendMonths = 12
)

var hundred = decimal.NewFromInt(100)

// MemberAmount is an amount aggregated by contributing member.
type MemberAmount struct {
	UserID   string
	Username string
	FullName string
	Total    decimal.Decimal
	Count    int
	Share    decimal.Decimal // percent of the home total, one decimal
	Former   bool            // contributed but no longer a member
}

// ItemAmount is an amount aggregated by contribution description.
type ItemAmount struct {
	Name  string
	Total decimal.Decimal
	Count int
}

// Dashboard holds the statistics shown to a member for their home.
type Dashboard struct {
	Home       Home
	Members    []User
	Total      decimal.Decimal
	Count      int
	FairShare  decimal.Decimal // total divided by member count
	MyTotal    decimal.Decimal
	MyCount    int
	MyBalance  decimal.Decimal // my total minus fair share
	Year       int
	Month      int
	MonthTotal decimal.Decimal
	MonthCount int
	ByMember   []MemberAmount
	Recent     []Contribution
}

// MonthSummary is a compact summary for a specific year+month.
type MonthSummary struct {
	Year          int
	Month         int // 1-12
	Total         decimal.Decimal
	Count         int
	ByMember      []MemberAmount
	ByItem        []ItemAmount
	Contributions []Contribution
}

// MonthTotal is the amount contributed to a home during one calendar month.
type MonthTotal struct {
	Year  int
	Month int
	Total decimal.Decimal
	Count int
}

// Analytics is the all-time breakdown of a home.
type Analytics struct {
	Home     Home
	Total    decimal.Decimal
	Count    int
	ByMember []MemberAmount
	ByItem   []ItemAmount
	Monthly  []MonthTotal
}

// UserStats summarizes one member's own contributions.
type UserStats struct {
	Total   decimal.Decimal
	Count   int
	Average decimal.Decimal
	First   time.Time
	Last    time.Time
}

// BuildDashboard computes dashboard statistics from the full contribution
// list of a home. The result depends only on its inputs.
func BuildDashboard(home Home, members []User, cs []Contribution, viewerID string, now time.Time) Dashboard {
	now = now.UTC()
	sorted := SortNewestFirst(cs)

	d := Dashboard{
		Home:    home,
		Members: members,
		Total:   SumAmounts(sorted),
		Count:   len(sorted),
		Year:    now.Year(),
		Month:   int(now.Month()),
	}

	for _, c := range sorted {
		if c.UserID == viewerID {
			d.MyTotal = d.MyTotal.Add(c.Amount)
			d.MyCount++
		}
	}

	month := FilterMonth(sorted, d.Year, d.Month)
	d.MonthTotal = SumAmounts(month)
	d.MonthCount = len(month)

	if len(members) > 0 {
		d.FairShare = d.Total.Div(decimal.NewFromInt(int64(len(members)))).Round(2)
	}
	d.MyBalance = d.MyTotal.Sub(d.FairShare)
	d.ByMember = ByMember(sorted, members)

	if len(sorted) > RecentLimit {
		sorted = sorted[:RecentLimit]
	}
	d.Recent = sorted
	return d
}

// SummarizeMonth aggregates the contributions that fall in year/month (UTC).
func SummarizeMonth(cs []Contribution, members []User, year, month int) (MonthSummary, error) {
	if month < 1 || month > 12 {
		return MonthSummary{}, Invalid("month", ErrInvalidMonth)
	}
	in := FilterMonth(SortNewestFirst(cs), year, month)
	return MonthSummary{
		Year:          year,
		Month:         month,
		Total:         SumAmounts(in),
		Count:         len(in),
		ByMember:      ByMember(in, members),
		ByItem:        ByItem(in),
		Contributions: in,
	}, nil
}

// BuildAnalytics aggregates every contribution of a home and totals them
// per month for each entry of months.
func BuildAnalytics(home Home, members []User, cs []Contribution, months []time.Time) Analytics {
	return Analytics{
		Home:     home,
		Total:    SumAmounts(cs),
		Count:    len(cs),
		ByMember: ByMember(cs, members),
		ByItem:   ByItem(cs),
		Monthly:  MonthlyTrend(cs, months),
	}
}

// MonthlyTrend totals cs for the calendar month (UTC) of each entry of
// months, keeping their order. Months without contributions stay at zero.
func MonthlyTrend(cs []Contribution, months []time.Time) []MonthTotal {
	type ym struct{ year, month int }
	out := make([]MonthTotal, len(months))
	idx := make(map[ym]int, len(months))
	for i, m := range months {
		m = m.UTC()
		out[i] = MonthTotal{Year: m.Year(), Month: int(m.Month())}
		idx[ym{out[i].Year, out[i].Month}] = i
	}
	for _, c := range cs {
		t := c.CreatedAt.UTC()
		if i, ok := idx[ym{t.Year(), int(t.Month())}]; ok {
			out[i].Total = out[i].Total.Add(c.Amount)
			out[i].Count++
		}
	}
	return out
}

// SummarizeUser computes statistics for the contributions of a single member.
func SummarizeUser(cs []Contribution) UserStats {
	s := UserStats{Total: SumAmounts(cs), Count: len(cs)}
	if s.Count == 0 {
		return s
	}
	s.Average = s.Total.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	for i, c := range cs {
		if i == 0 || c.CreatedAt.Before(s.First) {
			s.First = c.CreatedAt
		}
		if i == 0 || c.CreatedAt.After(s.Last) {
			s.Last = c.CreatedAt
		}
	}
	return s
}

// ByMember aggregates by contributor. Every member appears, including those
// with no contributions; contributors missing from members are appended and
// flagged Former.
// Rows are ordered by total, highest first, then by username.
func ByMember(cs []Contribution, members []User) []MemberAmount {
	rows := make(map[string]*MemberAmount, len(members))
	order := make([]string, 0, len(members))
	for _, m := range members {
		rows[m.ID] = &MemberAmount{UserID: m.ID, Username: m.Username, FullName: m.FullName}
		order = append(order, m.ID)
	}
	total := decimal.Zero
	for _, c := range cs {
		row, ok := rows[c.UserID]
		if !ok {
			row = &MemberAmount{UserID: c.UserID, Username: c.UserID, Former: true}
			rows[c.UserID] = row
			order = append(order, c.UserID)
		}
		row.Total = row.Total.Add(c.Amount)
		row.Count++
		total = total.Add(c.Amount)
	}

	out := make([]MemberAmount, 0, len(order))
	for _, id := range order {
		row := rows[id]
		if total.IsPositive() {
			row.Share = row.Total.Mul(hundred).Div(total).Round(1)
		}
		out = append(out, *row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Username < out[j].Username
	})
	return out
}

// ByItem aggregates by description, case-insensitively, keeping the first
// spelling seen. Rows are ordered by total, highest first.
func ByItem(cs []Contribution) []ItemAmount {
	idx := make(map[string]int)
	var out []ItemAmount
	for _, c := range cs {
		key := strings.ToLower(strings.TrimSpace(c.Description))
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, ItemAmount{Name: strings.TrimSpace(c.Description)})
		}
		out[i].Total = out[i].Total.Add(c.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.GreaterThan(out[j].Total)
	})
	return out
}

// FilterMonth returns the contributions created in year/month (UTC),
// preserving order.
func FilterMonth(cs []Contribution, year, month int) []Contribution {
	var out []Contribution
	for _, c := range cs {
		t := c.CreatedAt.UTC()
		if t.Year() == year && int(t.Month()) == month {
			out = append(out, c)
		}
	}
	return out
}

// SortNewestFirst returns a copy of cs ordered by creation time, newest first.
func SortNewestFirst(cs []Contribution) []Contribution {
	out := make([]Contribution, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
