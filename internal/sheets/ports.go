package sheets

import (
	"context"
	"time"

	"housefin/internal/core"
)

// Header is the first row of every contributions sheet.
var Header = []any{"Date", "Month", "Member", "Description", "Amount", "ID"}

// Row is one mirrored contribution.
type Row struct {
	ID          string
	Date        time.Time
	Username    string
	Description string
	Amount      string // fixed two decimals
}

// NewRow builds the sheet row for a stored contribution.
func NewRow(c core.Contribution, username string) Row {
	return Row{
		ID:          c.ID,
		Date:        c.CreatedAt.UTC(),
		Username:    username,
		Description: c.Description,
		Amount:      core.FormatAmount(c.Amount),
	}
}

// Values returns the cells in Header order.
func (r Row) Values() []any {
	return []any{
		r.Date.Format("2006-01-02"),
		int(r.Date.Month()),
		r.Username,
		r.Description,
		r.Amount,
		r.ID,
	}
}

// Ports for outbound adapters.
type (
	// ContributionWriter appends contribution rows. Appending a row whose ID
	// is already present returns the existing reference.
	ContributionWriter interface {
		AppendContribution(ctx context.Context, row Row) (rowRef string, err error)
	}
)
