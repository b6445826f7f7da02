package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"housefin/internal/core"
	applog "housefin/internal/log"
	"housefin/internal/storage"
)

// publishTimeout bounds how long a request waits on the event broker.
const publishTimeout = 2 * time.Second

// EventPublisher announces stored contributions to other processes.
type EventPublisher interface {
	PublishContributionCreated(ctx context.Context, c core.Contribution, username string) error
}

// HomeContributions is a home together with its members and contributions,
// newest first.
type HomeContributions struct {
	Home          core.Home
	Members       []core.User
	Contributions []core.Contribution
}

// ContributionService records contributions and computes statistics.
// Nothing is cached: every read recomputes from the store.
type ContributionService struct {
	store     storage.Store
	publisher EventPublisher
	now       func() time.Time
	logger    *applog.Logger
}

// NewContributionService builds the service. publisher may be nil.
func NewContributionService(store storage.Store, publisher EventPublisher, logger *applog.Logger) *ContributionService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ContributionService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.WithComponent(applog.ComponentContribution),
	}
}

// Add records a contribution by user toward their home.
func (s *ContributionService) Add(ctx context.Context, user core.User, in core.ContributionInput) (core.Contribution, error) {
	if !user.HasHome() {
		return core.Contribution{}, core.Invalid("home", core.ErrNoHome)
	}
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return core.Contribution{}, err
	}

	c := core.Contribution{
		HomeID:      user.HomeID,
		UserID:      user.ID,
		Amount:      in.Amount,
		Description: in.Description,
	}
	if err := s.store.CreateContribution(ctx, &c); err != nil {
		return core.Contribution{}, fmt.Errorf("add contribution: %w", err)
	}

	applog.NewStructuredLogger(s.logger).LogContributionCreated(ctx, c)
	s.publish(ctx, c, user.Username)
	return c, nil
}

// publish never fails the request: the contribution is already stored.
func (s *ContributionService) publish(ctx context.Context, c core.Contribution, username string) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishContributionCreated(pubCtx, c, username); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish contribution event",
			applog.NewFields().WithContribution(c).WithError(err).WithOperation(applog.OpPublish).ToSlice()...)
	}
}

// Load fetches the home, its members and all its contributions concurrently.
func (s *ContributionService) Load(ctx context.Context, homeID string) (HomeContributions, error) {
	var out HomeContributions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := s.store.GetHomeByID(gctx, homeID)
		if err != nil {
			return fmt.Errorf("load home: %w", err)
		}
		out.Home = h
		return nil
	})
	g.Go(func() error {
		members, err := s.store.ListUsersByHome(gctx, homeID)
		if err != nil {
			return fmt.Errorf("load members: %w", err)
		}
		out.Members = members
		return nil
	})
	g.Go(func() error {
		cs, err := s.store.ListContributionsByHome(gctx, homeID)
		if err != nil {
			return fmt.Errorf("load contributions: %w", err)
		}
		out.Contributions = core.SortNewestFirst(cs)
		return nil
	})
	if err := g.Wait(); err != nil {
		return HomeContributions{}, err
	}
	return out, nil
}

// Dashboard computes the statistics for user's home.
func (s *ContributionService) Dashboard(ctx context.Context, user core.User) (core.Dashboard, error) {
	if !user.HasHome() {
		return core.Dashboard{}, core.Invalid("home", core.ErrNoHome)
	}
	hc, err := s.Load(ctx, user.HomeID)
	if err != nil {
		return core.Dashboard{}, err
	}
	return core.BuildDashboard(hc.Home, hc.Members, hc.Contributions, user.ID, s.now()), nil
}

// List returns every contribution of user's home.
func (s *ContributionService) List(ctx context.Context, user core.User) (HomeContributions, error) {
	if !user.HasHome() {
		return HomeContributions{}, core.Invalid("home", core.ErrNoHome)
	}
	return s.Load(ctx, user.HomeID)
}

// Month summarizes user's home for year/month. A zero year or month means
// the current one.
func (s *ContributionService) Month(ctx context.Context, user core.User, year, month int) (core.MonthSummary, error) {
	if !user.HasHome() {
		return core.MonthSummary{}, core.Invalid("home", core.ErrNoHome)
	}
	now := s.now().UTC()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 || year < 1970 || year > 9999 {
		return core.MonthSummary{}, core.Invalid("month", core.ErrInvalidMonth)
	}

	hc, err := s.Load(ctx, user.HomeID)
	if err != nil {
		return core.MonthSummary{}, err
	}
	return core.SummarizeMonth(hc.Contributions, hc.Members, year, month)
}

// Analytics computes the all-time breakdown of user's home and its trend
// over the last months, newest first. months <= 0 means core.TrendMonths.
func (s *ContributionService) Analytics(ctx context.Context, user core.User, months int) (core.Analytics, error) {
	if !user.HasHome() {
		return core.Analytics{}, core.Invalid("home", core.ErrNoHome)
	}
	if months <= 0 {
		months = core.TrendMonths
	}
	hc, err := s.Load(ctx, user.HomeID)
	if err != nil {
		return core.Analytics{}, err
	}
	return core.BuildAnalytics(hc.Home, hc.Members, hc.Contributions, s.RecentMonths(months)), nil
}

// UserStats summarizes the contributions made by user.
func (s *ContributionService) UserStats(ctx context.Context, user core.User) (core.UserStats, error) {
	cs, err := s.store.ListContributionsByUser(ctx, user.ID)
	if err != nil {
		return core.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return core.SummarizeUser(cs), nil
}

// RecentMonths returns the last n months, newest first, for month selectors.
func (s *ContributionService) RecentMonths(n int) []time.Time {
	now := s.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = first.AddDate(0, -i, 0)
	}
	return out
}
