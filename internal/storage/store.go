// Package storage persists users, homes and contributions in a relational store.
package storage

import (
	"context"

	"housefin/internal/core"
)

// Driver names a supported SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

func (d Driver) String() string {
	return string(d)
}

// IsValid returns true if the driver is supported
func (d Driver) IsValid() bool {
	switch d {
	case DriverSQLite, DriverPostgres:
		return true
	default:
		return false
	}
}

// Ports used by services. Lookups fail with core.ErrNotFound, unique
// violations with core.ErrConflict and an unreachable store with
// core.ErrConnection.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u *core.User) error
		GetUserByID(ctx context.Context, id string) (core.User, error)
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		ListUsersByHome(ctx context.Context, homeID string) ([]core.User, error)
		UpdateUserProfile(ctx context.Context, id, fullName, email string) error
		SetUserHome(ctx context.Context, userID, homeID string) error
		// ClearUserHome unlinks the user from homeID only.
		ClearUserHome(ctx context.Context, userID, homeID string) error
	}

	HomeStore interface {
		// CreateHome inserts the home and makes its leader a member in one transaction.
		CreateHome(ctx context.Context, h *core.Home) error
		GetHomeByID(ctx context.Context, id string) (core.Home, error)
		GetHomeByName(ctx context.Context, name string) (core.Home, error)
		// DeleteHome removes the home with its contributions and unlinks its members.
		DeleteHome(ctx context.Context, id string) error
	}

	ContributionStore interface {
		CreateContribution(ctx context.Context, c *core.Contribution) error
		GetContributionByID(ctx context.Context, id string) (core.Contribution, error)
		ListContributionsByHome(ctx context.Context, homeID string) ([]core.Contribution, error)
		ListContributionsByUser(ctx context.Context, userID string) ([]core.Contribution, error)
	}

	Store interface {
		UserStore
		HomeStore
		ContributionStore
		Ping(ctx context.Context) error
		Driver() Driver
		Close() error
	}
)

var _ Store = (*Repository)(nil)
