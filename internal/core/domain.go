package core

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxDescriptionLength = 200
	MaxFullNameLength    = 100
	MinPasswordLength    = 8
	MaxPasswordLength    = 72 // bcrypt input limit
)

type (
	User struct {
		ID           string
		Username     string
		Email        string
		FullName     string
		PasswordHash string
		HomeID       string // empty when the user has not joined a home
		CreatedAt    time.Time
	}

	Home struct {
		ID          string
		Name        string
		Description string
		LeaderID    string
		MemberIDs   []string
		CreatedAt   time.Time
	}

	Contribution struct {
		ID          string
		HomeID      string
		UserID      string
		Amount      decimal.Decimal
		Description string
		CreatedAt   time.Time
	}

	// Registration is the account creation payload.
	Registration struct {
		Username string
		Email    string
		FullName string
		Password string
	}

	// ContributionInput is the add-contribution payload.
	ContributionInput struct {
		Amount      decimal.Decimal
		Description string
	}

	ProfileUpdate struct {
		FullName string
		Email    string
	}

	HomeInput struct {
		Name        string
		Description string
	}
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,50}$`)

// HasHome reports whether the user belongs to a home.
func (u User) HasHome() bool {
	return u.HomeID != ""
}

// IsMember reports whether userID is listed among the home's members.
func (h Home) IsMember(userID string) bool {
	for _, id := range h.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Normalize trims fields and lower-cases the email. The username is kept
// case-sensitive.
func (r Registration) Normalize() Registration {
	return Registration{
		Username: strings.TrimSpace(r.Username),
		Email:    NormalizeEmail(r.Email),
		FullName: strings.TrimSpace(r.FullName),
		Password: r.Password,
	}
}

func (r Registration) Validate() error {
	if !usernamePattern.MatchString(r.Username) {
		return Invalid("username", ErrInvalidUsername)
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if err := validateFullName(r.FullName); err != nil {
		return err
	}
	if len(r.Password) < MinPasswordLength || len(r.Password) > MaxPasswordLength {
		return Invalid("password", ErrWeakPassword)
	}
	return nil
}

func (p ProfileUpdate) Normalize() ProfileUpdate {
	return ProfileUpdate{
		FullName: strings.TrimSpace(p.FullName),
		Email:    NormalizeEmail(p.Email),
	}
}

func (p ProfileUpdate) Validate() error {
	if err := validateFullName(p.FullName); err != nil {
		return err
	}
	return validateEmail(p.Email)
}

func (h HomeInput) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(h.Name))
	if n < 2 || n > 80 {
		return Invalid("name", ErrInvalidHomeName)
	}
	if utf8.RuneCountInString(h.Description) > MaxDescriptionLength {
		return Invalid("description", ErrDescriptionTooLong)
	}
	return nil
}

func (c ContributionInput) Validate() error {
	if strings.TrimSpace(c.Description) == "" {
		return Invalid("description", ErrEmptyDescription)
	}
	if utf8.RuneCountInString(c.Description) > MaxDescriptionLength {
		return Invalid("description", ErrDescriptionTooLong)
	}
	return ValidateAmount(c.Amount)
}

func (c Contribution) Validate() error {
	if c.HomeID == "" || c.UserID == "" {
		return Invalid("home", ErrNoHome)
	}
	return ContributionInput{Amount: c.Amount, Description: c.Description}.Validate()
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, ".") {
		return Invalid("email", ErrInvalidEmail)
	}
	return nil
}

func validateFullName(name string) error {
	if strings.TrimSpace(name) == "" {
		return Invalid("full_name", ErrEmptyFullName)
	}
	if utf8.RuneCountInString(name) > MaxFullNameLength {
		return Invalid("full_name", ErrFullNameTooLong)
	}
	return nil
}
