package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"housefin/internal/core"
)

// EventContributionCreated is the type of events published after a contribution is stored.
const EventContributionCreated = "contribution.created"

// ContributionEvent carries a stored contribution to out-of-process consumers.
// Amount is a decimal string so no precision is lost in transit.
type ContributionEvent struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	HomeID      string    `json:"home_id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewContributionCreated builds the event for a stored contribution
func NewContributionCreated(c core.Contribution, username string) *ContributionEvent {
	return &ContributionEvent{
		Type:        EventContributionCreated,
		ID:          c.ID,
		HomeID:      c.HomeID,
		UserID:      c.UserID,
		Username:    username,
		Amount:      core.FormatAmount(c.Amount),
		Description: c.Description,
		CreatedAt:   c.CreatedAt.UTC(),
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ContributionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Contribution converts the event back into a domain value.
func (e *ContributionEvent) Contribution() (core.Contribution, error) {
	amount, err := decimal.NewFromString(e.Amount)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("event %s: invalid amount %q: %w", e.ID, e.Amount, err)
	}
	return core.Contribution{
		ID:          e.ID,
		HomeID:      e.HomeID,
		UserID:      e.UserID,
		Amount:      amount,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}, nil
}

// ContributionEventFromJSON decodes and checks an event
func ContributionEventFromJSON(data []byte) (*ContributionEvent, error) {
	var e ContributionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Type != EventContributionCreated {
		return nil, fmt.Errorf("unexpected event type %q", e.Type)
	}
	if e.ID == "" || e.HomeID == "" || e.UserID == "" {
		return nil, fmt.Errorf("event is missing identifiers")
	}
	return &e, nil
}
