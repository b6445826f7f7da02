package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"housefin/internal/core"
	applog "housefin/internal/log"
	"housefin/internal/storage"
)

type householdStore interface {
	storage.HomeStore
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	SetUserHome(ctx context.Context, userID, homeID string) error
	ClearUserHome(ctx context.Context, userID, homeID string) error
	ListUsersByHome(ctx context.Context, homeID string) ([]core.User, error)
}

// HouseholdService manages homes and their membership. A user belongs to at
// most one home.
type HouseholdService struct {
	store  householdStore
	logger *applog.Logger
}

func NewHouseholdService(store householdStore, logger *applog.Logger) *HouseholdService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &HouseholdService{store: store, logger: logger.WithComponent(applog.ComponentHousehold)}
}

// CreateHome creates a home led by user, who becomes its first member.
func (s *HouseholdService) CreateHome(ctx context.Context, user core.User, in core.HomeInput) (core.Home, error) {
	if user.HasHome() {
		return core.Home{}, core.Invalid("home", core.ErrAlreadyInHome)
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return core.Home{}, err
	}

	h := core.Home{Name: in.Name, Description: in.Description, LeaderID: user.ID}
	if err := s.store.CreateHome(ctx, &h); err != nil {
		switch {
		case errors.Is(err, storage.ErrLeaderHasHome):
			return core.Home{}, core.Invalid("home", core.ErrAlreadyInHome)
		case errors.Is(err, core.ErrConflict):
			return core.Home{}, core.Invalid("name", core.ErrHomeNameTaken)
		}
		return core.Home{}, fmt.Errorf("create home: %w", err)
	}

	s.logger.InfoContext(ctx, "Home created",
		applog.NewFields().WithHome(h.ID, h.Name).WithUser(user.ID, user.Username).WithOperation(applog.OpCreate).ToSlice()...)
	return h, nil
}

// JoinHome adds user to the home with the given name.
func (s *HouseholdService) JoinHome(ctx context.Context, user core.User, name string) (core.Home, error) {
	if user.HasHome() {
		return core.Home{}, core.Invalid("home", core.ErrAlreadyInHome)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Home{}, core.Invalid("name", core.ErrInvalidHomeName)
	}

	h, err := s.store.GetHomeByName(ctx, name)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Home{}, core.Invalid("name", core.ErrUnknownHome)
		}
		return core.Home{}, fmt.Errorf("join home: %w", err)
	}

	if err := s.store.SetUserHome(ctx, user.ID, h.ID); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.Home{}, core.Invalid("home", core.ErrAlreadyInHome)
		}
		return core.Home{}, fmt.Errorf("join home: %w", err)
	}
	h.MemberIDs = append(h.MemberIDs, user.ID)

	s.logger.InfoContext(ctx, "User joined home",
		applog.NewFields().WithHome(h.ID, h.Name).WithUser(user.ID, user.Username).WithOperation(applog.OpJoin).ToSlice()...)
	return h, nil
}

// LeaveHome removes user from their home. The leader may only leave as the
// last member, which deletes the home together with its contributions.
func (s *HouseholdService) LeaveHome(ctx context.Context, user core.User) (core.Home, error) {
	if !user.HasHome() {
		return core.Home{}, core.Invalid("home", core.ErrNoHome)
	}
	h, err := s.store.GetHomeByID(ctx, user.HomeID)
	if err != nil {
		return core.Home{}, fmt.Errorf("leave home: %w", err)
	}
	fields := applog.NewFields().WithHome(h.ID, h.Name).WithUser(user.ID, user.Username)

	if h.LeaderID == user.ID {
		if len(h.MemberIDs) > 1 {
			return core.Home{}, core.Invalid("home", core.ErrLeaderMustStay)
		}
		if err := s.store.DeleteHome(ctx, h.ID); err != nil {
			return core.Home{}, fmt.Errorf("leave home: %w", err)
		}
		s.logger.InfoContext(ctx, "Last member left, home deleted", fields.WithOperation(applog.OpDelete).ToSlice()...)
		return h, nil
	}

	if err := s.store.ClearUserHome(ctx, user.ID, h.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Home{}, core.Invalid("home", core.ErrNoHome)
		}
		return core.Home{}, fmt.Errorf("leave home: %w", err)
	}
	s.logger.InfoContext(ctx, "User left home", fields.WithOperation(applog.OpLeave).ToSlice()...)
	return h, nil
}

// RemoveMember lets the leader of a home drop another member from it. The
// removed member's contributions stay with the home.
func (s *HouseholdService) RemoveMember(ctx context.Context, leader core.User, username string) (core.User, error) {
	if !leader.HasHome() {
		return core.User{}, core.Invalid("home", core.ErrNoHome)
	}
	h, err := s.store.GetHomeByID(ctx, leader.HomeID)
	if err != nil {
		return core.User{}, fmt.Errorf("remove member: %w", err)
	}
	if h.LeaderID != leader.ID {
		return core.User{}, core.Invalid("home", core.ErrNotLeader)
	}

	member, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	switch {
	case errors.Is(err, core.ErrNotFound):
		return core.User{}, core.Invalid("username", core.ErrNotMember)
	case err != nil:
		return core.User{}, fmt.Errorf("remove member: %w", err)
	case member.ID == leader.ID:
		return core.User{}, core.Invalid("username", core.ErrCannotRemoveLeader)
	case member.HomeID != h.ID:
		return core.User{}, core.Invalid("username", core.ErrNotMember)
	}

	if err := s.store.ClearUserHome(ctx, member.ID, h.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, core.Invalid("username", core.ErrNotMember)
		}
		return core.User{}, fmt.Errorf("remove member: %w", err)
	}
	member.HomeID = ""

	s.logger.InfoContext(ctx, "Member removed from home",
		applog.NewFields().WithHome(h.ID, h.Name).WithUser(member.ID, member.Username).
			WithOperation(applog.OpRemove).ToSlice()...)
	return member, nil
}

// GetHome loads a home with its member IDs.
func (s *HouseholdService) GetHome(ctx context.Context, id string) (core.Home, error) {
	return s.store.GetHomeByID(ctx, id)
}

// Members lists the users of a home.
func (s *HouseholdService) Members(ctx context.Context, homeID string) ([]core.User, error) {
	return s.store.ListUsersByHome(ctx, homeID)
}
