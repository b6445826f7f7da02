package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"housefin/internal/core"
)

// RepositoryTestSuite runs every test against a fresh sqlite file.
type RepositoryTestSuite struct {
	suite.Suite
	repo *Repository
	ctx  context.Context
}

func (suite *RepositoryTestSuite) SetupTest() {
	suite.ctx = context.Background()
	repo, err := Open(suite.ctx, Options{
		Driver: DriverSQLite,
		DSN:    filepath.Join(suite.T().TempDir(), "data", "housefin.db"),
	})
	require.NoError(suite.T(), err, "failed to open test database")
	suite.repo = repo
}

func (suite *RepositoryTestSuite) TearDownTest() {
	if suite.repo != nil {
		suite.repo.Close()
	}
}

func (suite *RepositoryTestSuite) createUser(username string) core.User {
	u := core.User{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "User " + username,
		PasswordHash: "hash",
	}
	require.NoError(suite.T(), suite.repo.CreateUser(suite.ctx, &u))
	return u
}

func (suite *RepositoryTestSuite) createHome(name string, leader core.User) core.Home {
	h := core.Home{Name: name, Description: "shared flat", LeaderID: leader.ID}
	require.NoError(suite.T(), suite.repo.CreateHome(suite.ctx, &h))
	return h
}

func (suite *RepositoryTestSuite) TestOpenIsIdempotent() {
	// Re-running migrations on an up-to-date database is a no-op.
	path := filepath.Join(suite.T().TempDir(), "again.db")
	first, err := Open(suite.ctx, Options{Driver: DriverSQLite, DSN: path})
	require.NoError(suite.T(), err)
	first.Close()

	second, err := Open(suite.ctx, Options{Driver: DriverSQLite, DSN: path})
	require.NoError(suite.T(), err)
	defer second.Close()
	assert.NoError(suite.T(), second.Ping(suite.ctx))
	assert.Equal(suite.T(), DriverSQLite, second.Driver())
}

func (suite *RepositoryTestSuite) TestMigrationsRollBackAndReapply() {
	path := filepath.Join(suite.T().TempDir(), "rollback.db")
	repo, err := Open(suite.ctx, Options{Driver: DriverSQLite, DSN: path})
	require.NoError(suite.T(), err)

	alice := core.User{Username: "alice", Email: "alice@example.com", FullName: "Alice", PasswordHash: "h"}
	require.NoError(suite.T(), repo.CreateUser(suite.ctx, &alice))
	h := core.Home{Name: "Maple Street", LeaderID: alice.ID}
	require.NoError(suite.T(), repo.CreateHome(suite.ctx, &h))
	c := core.Contribution{HomeID: h.ID, UserID: alice.ID, Amount: decimal.NewFromInt(3), Description: "bread"}
	require.NoError(suite.T(), repo.CreateContribution(suite.ctx, &c))
	require.NoError(suite.T(), repo.Close())

	err = migrateWith(DriverSQLite, sqliteDSN(path), func(m *migrate.Migrate) error { return m.Down() })
	require.NoError(suite.T(), err)

	again, err := Open(suite.ctx, Options{Driver: DriverSQLite, DSN: path})
	require.NoError(suite.T(), err)
	defer again.Close()
	_, err = again.GetUserByUsername(suite.ctx, "alice")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *RepositoryTestSuite) TestOpenRejectsUnknownDriver() {
	_, err := Open(suite.ctx, Options{Driver: "mongodb", DSN: "x"})
	assert.Error(suite.T(), err)
}

func (suite *RepositoryTestSuite) TestCreateAndGetUser() {
	u := suite.createUser("alice")
	assert.NotEmpty(suite.T(), u.ID)
	assert.False(suite.T(), u.CreatedAt.IsZero())

	byID, err := suite.repo.GetUserByID(suite.ctx, u.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "alice", byID.Username)
	assert.Equal(suite.T(), "alice@example.com", byID.Email)
	assert.Empty(suite.T(), byID.HomeID)
	assert.WithinDuration(suite.T(), u.CreatedAt, byID.CreatedAt, time.Millisecond)

	byName, err := suite.repo.GetUserByUsername(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), u.ID, byName.ID)

	byEmail, err := suite.repo.GetUserByEmail(suite.ctx, "alice@example.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), u.ID, byEmail.ID)
}

func (suite *RepositoryTestSuite) TestGetUserNotFound() {
	_, err := suite.repo.GetUserByUsername(suite.ctx, "ghost")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
	assert.True(suite.T(), IsNotFound(err))
}

func (suite *RepositoryTestSuite) TestDuplicateUsernameAndEmail() {
	suite.createUser("alice")

	dupName := core.User{Username: "alice", Email: "other@example.com", FullName: "A", PasswordHash: "h"}
	err := suite.repo.CreateUser(suite.ctx, &dupName)
	assert.ErrorIs(suite.T(), err, core.ErrConflict)

	dupEmail := core.User{Username: "alice2", Email: "alice@example.com", FullName: "A", PasswordHash: "h"}
	err = suite.repo.CreateUser(suite.ctx, &dupEmail)
	assert.ErrorIs(suite.T(), err, core.ErrConflict)
}

func (suite *RepositoryTestSuite) TestUpdateUserProfile() {
	u := suite.createUser("alice")
	require.NoError(suite.T(), suite.repo.UpdateUserProfile(suite.ctx, u.ID, "Alice Liddell", "al@example.com"))

	got, err := suite.repo.GetUserByID(suite.ctx, u.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Alice Liddell", got.FullName)
	assert.Equal(suite.T(), "al@example.com", got.Email)

	err = suite.repo.UpdateUserProfile(suite.ctx, "missing", "x", "x@example.com")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	bob := suite.createUser("bob")
	err = suite.repo.UpdateUserProfile(suite.ctx, bob.ID, "Bob", "al@example.com")
	assert.ErrorIs(suite.T(), err, core.ErrConflict)
}

func (suite *RepositoryTestSuite) TestCreateHomeMakesLeaderMember() {
	leader := suite.createUser("alice")
	h := suite.createHome("Maple Street", leader)
	assert.Equal(suite.T(), []string{leader.ID}, h.MemberIDs)

	got, err := suite.repo.GetHomeByName(suite.ctx, "Maple Street")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), h.ID, got.ID)
	assert.Equal(suite.T(), leader.ID, got.LeaderID)
	assert.Equal(suite.T(), []string{leader.ID}, got.MemberIDs)

	u, err := suite.repo.GetUserByID(suite.ctx, leader.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), h.ID, u.HomeID)
}

func (suite *RepositoryTestSuite) TestCreateHomeConflicts() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	suite.createHome("Maple Street", alice)

	// Name taken.
	dup := core.Home{Name: "Maple Street", LeaderID: bob.ID}
	assert.ErrorIs(suite.T(), suite.repo.CreateHome(suite.ctx, &dup), core.ErrConflict)

	// Leader already in a home; the second home must be rolled back.
	second := core.Home{Name: "Oak Avenue", LeaderID: alice.ID}
	err := suite.repo.CreateHome(suite.ctx, &second)
	assert.ErrorIs(suite.T(), err, ErrLeaderHasHome)
	_, err = suite.repo.GetHomeByName(suite.ctx, "Oak Avenue")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *RepositoryTestSuite) TestSetUserHome() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	h := suite.createHome("Maple Street", alice)

	require.NoError(suite.T(), suite.repo.SetUserHome(suite.ctx, bob.ID, h.ID))
	got, err := suite.repo.GetHomeByID(suite.ctx, h.ID)
	require.NoError(suite.T(), err)
	assert.ElementsMatch(suite.T(), []string{alice.ID, bob.ID}, got.MemberIDs)

	members, err := suite.repo.ListUsersByHome(suite.ctx, h.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), members, 2)
	assert.Equal(suite.T(), "alice", members[0].Username)

	err = suite.repo.SetUserHome(suite.ctx, bob.ID, h.ID)
	assert.ErrorIs(suite.T(), err, core.ErrConflict)

	err = suite.repo.SetUserHome(suite.ctx, "missing", h.ID)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	carol := suite.createUser("carol")
	err = suite.repo.SetUserHome(suite.ctx, carol.ID, "no-such-home")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *RepositoryTestSuite) TestClearUserHome() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	h := suite.createHome("Maple Street", alice)
	require.NoError(suite.T(), suite.repo.SetUserHome(suite.ctx, bob.ID, h.ID))

	err := suite.repo.ClearUserHome(suite.ctx, bob.ID, "other-home")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	require.NoError(suite.T(), suite.repo.ClearUserHome(suite.ctx, bob.ID, h.ID))
	got, err := suite.repo.GetHomeByID(suite.ctx, h.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{alice.ID}, got.MemberIDs)

	err = suite.repo.ClearUserHome(suite.ctx, bob.ID, h.ID)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	// Unlinked users may join again.
	require.NoError(suite.T(), suite.repo.SetUserHome(suite.ctx, bob.ID, h.ID))
}

func (suite *RepositoryTestSuite) TestDeleteHome() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	h := suite.createHome("Maple Street", alice)
	require.NoError(suite.T(), suite.repo.SetUserHome(suite.ctx, bob.ID, h.ID))
	c := core.Contribution{HomeID: h.ID, UserID: bob.ID, Amount: decimal.NewFromInt(4), Description: "milk"}
	require.NoError(suite.T(), suite.repo.CreateContribution(suite.ctx, &c))

	require.NoError(suite.T(), suite.repo.DeleteHome(suite.ctx, h.ID))

	_, err := suite.repo.GetHomeByID(suite.ctx, h.ID)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
	_, err = suite.repo.GetContributionByID(suite.ctx, c.ID)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
	for _, id := range []string{alice.ID, bob.ID} {
		u, err := suite.repo.GetUserByID(suite.ctx, id)
		require.NoError(suite.T(), err)
		assert.Empty(suite.T(), u.HomeID)
	}

	// The name is free again.
	suite.createHome("Maple Street", bob)

	assert.ErrorIs(suite.T(), suite.repo.DeleteHome(suite.ctx, h.ID), core.ErrNotFound)
}

func (suite *RepositoryTestSuite) TestContributions() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	h := suite.createHome("Maple Street", alice)
	require.NoError(suite.T(), suite.repo.SetUserHome(suite.ctx, bob.ID, h.ID))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	add := func(u core.User, amount, desc string, at time.Time) core.Contribution {
		suite.repo.now = func() time.Time { return at }
		c := core.Contribution{
			HomeID:      h.ID,
			UserID:      u.ID,
			Amount:      decimal.RequireFromString(amount),
			Description: desc,
		}
		require.NoError(suite.T(), suite.repo.CreateContribution(suite.ctx, &c))
		return c
	}

	first := add(alice, "12.50", "groceries", base)
	add(bob, "0.10", "stamps", base.Add(time.Hour))
	add(alice, "100", "rent share", base.Add(2*time.Hour))

	got, err := suite.repo.GetContributionByID(suite.ctx, first.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), decimal.RequireFromString("12.50").Equal(got.Amount), "amount %s", got.Amount)
	assert.Equal(suite.T(), "groceries", got.Description)
	assert.True(suite.T(), base.Equal(got.CreatedAt))

	all, err := suite.repo.ListContributionsByHome(suite.ctx, h.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), all, 3)
	assert.Equal(suite.T(), "rent share", all[0].Description)
	assert.Equal(suite.T(), "groceries", all[2].Description)

	mine, err := suite.repo.ListContributionsByUser(suite.ctx, alice.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), mine, 2)

	_, err = suite.repo.GetContributionByID(suite.ctx, "missing")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *RepositoryTestSuite) TestContributionUnknownHome() {
	alice := suite.createUser("alice")
	c := core.Contribution{HomeID: "nowhere", UserID: alice.ID, Amount: decimal.NewFromInt(1), Description: "x"}
	err := suite.repo.CreateContribution(suite.ctx, &c)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestDriverIsValid(t *testing.T) {
	assert.True(t, DriverSQLite.IsValid())
	assert.True(t, DriverPostgres.IsValid())
	assert.False(t, Driver("mysql").IsValid())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(context.DeadlineExceeded), core.ErrConnection)
	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
}
