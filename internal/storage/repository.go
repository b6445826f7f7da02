package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"housefin/internal/core"
)

func init() {
	sqlx.BindDriver(DriverSQLite.String(), sqlx.QUESTION)
}

// Options configures Open.
type Options struct {
	Driver Driver
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Repository implements Store on top of sqlx for both supported drivers.
type Repository struct {
	db     *sqlx.DB
	driver Driver
	now    func() time.Time
}

// Open connects to the database, verifies it and applies migrations.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	if !opts.Driver.IsValid() {
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}
	dsn := opts.DSN
	if opts.Driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(opts.Driver.String(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", classify(err))
	}

	if err := RunMigrations(opts.Driver, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, driver: opts.Driver, now: time.Now}, nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

func (r *Repository) Driver() Driver {
	return r.driver
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

type userRow struct {
	ID           string         `db:"id"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	FullName     string         `db:"full_name"`
	PasswordHash string         `db:"password_hash"`
	HomeID       sql.NullString `db:"home_id"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (u userRow) toCore() core.User {
	return core.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		PasswordHash: u.PasswordHash,
		HomeID:       u.HomeID.String,
		CreatedAt:    u.CreatedAt.UTC(),
	}
}

type homeRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	LeaderID    string    `db:"leader_id"`
	CreatedAt   time.Time `db:"created_at"`
}

type contributionRow struct {
	ID          string          `db:"id"`
	HomeID      string          `db:"home_id"`
	UserID      string          `db:"user_id"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (c contributionRow) toCore() core.Contribution {
	return core.Contribution{
		ID:          c.ID,
		HomeID:      c.HomeID,
		UserID:      c.UserID,
		Amount:      c.Amount,
		Description: c.Description,
		CreatedAt:   c.CreatedAt.UTC(),
	}
}

const userColumns = `id, username, email, full_name, password_hash, home_id, created_at`

// CreateUser inserts u, assigning its ID and creation time.
func (r *Repository) CreateUser(ctx context.Context, u *core.User) error {
	u.ID = uuid.NewString()
	u.CreatedAt = r.timestamp()
	var homeID sql.NullString
	if u.HomeID != "" {
		homeID = sql.NullString{String: u.HomeID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO users (id, username, email, full_name, password_hash, home_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, homeID, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", classify(err))
	}
	slog.InfoContext(ctx, "User created", "user_id", u.ID, "username", u.Username)
	return nil
}

func (r *Repository) getUser(ctx context.Context, column, value string) (core.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`), value)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by %s: %w", column, classify(err))
	}
	return row.toCore(), nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return r.getUser(ctx, "id", id)
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.getUser(ctx, "username", username)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUser(ctx, "email", email)
}

// ListUsersByHome returns the members of a home ordered by username.
func (r *Repository) ListUsersByHome(ctx context.Context, homeID string) ([]core.User, error) {
	var rows []userRow
	err := r.db.SelectContext(ctx, &rows,
		r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE home_id = ? ORDER BY username`), homeID)
	if err != nil {
		return nil, fmt.Errorf("list users by home: %w", classify(err))
	}
	users := make([]core.User, len(rows))
	for i, row := range rows {
		users[i] = row.toCore()
	}
	return users, nil
}

func (r *Repository) UpdateUserProfile(ctx context.Context, id, fullName, email string) error {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE users SET full_name = ?, email = ? WHERE id = ?`),
		fullName, email, id)
	if err != nil {
		return fmt.Errorf("update user profile: %w", classify(err))
	}
	return expectOne(res, "update user profile")
}

// SetUserHome links the user to a home. It fails with core.ErrConflict when
// the user already belongs to one.
func (r *Repository) SetUserHome(ctx context.Context, userID, homeID string) error {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE users SET home_id = ? WHERE id = ? AND home_id IS NULL`),
		homeID, userID)
	if err != nil {
		return fmt.Errorf("set user home: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user home: %w", classify(err))
	}
	if n == 0 {
		if _, err := r.GetUserByID(ctx, userID); err != nil {
			return fmt.Errorf("set user home: %w", err)
		}
		return fmt.Errorf("set user home: %w", ErrLeaderHasHome)
	}
	slog.InfoContext(ctx, "User joined home", "user_id", userID, "home_id", homeID)
	return nil
}

// ClearUserHome unlinks the user from homeID. It fails with core.ErrNotFound
// when the user is not a member of that home.
func (r *Repository) ClearUserHome(ctx context.Context, userID, homeID string) error {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE users SET home_id = NULL WHERE id = ? AND home_id = ?`),
		userID, homeID)
	if err != nil {
		return fmt.Errorf("clear user home: %w", classify(err))
	}
	if err := expectOne(res, "clear user home"); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User left home", "user_id", userID, "home_id", homeID)
	return nil
}

// CreateHome inserts h and sets its leader's membership atomically.
func (r *Repository) CreateHome(ctx context.Context, h *core.Home) error {
	h.ID = uuid.NewString()
	h.CreatedAt = r.timestamp()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create home: %w", classify(err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO homes (id, name, description, leader_id, created_at) VALUES (?, ?, ?, ?, ?)`),
		h.ID, h.Name, h.Description, h.LeaderID, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("create home: %w", classify(err))
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE users SET home_id = ? WHERE id = ? AND home_id IS NULL`), h.ID, h.LeaderID)
	if err != nil {
		return fmt.Errorf("create home: set leader: %w", classify(err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("create home: %w", classify(err))
	} else if n == 0 {
		return fmt.Errorf("create home: %w", ErrLeaderHasHome)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create home: %w", classify(err))
	}
	h.MemberIDs = []string{h.LeaderID}

	slog.InfoContext(ctx, "Home created", "home_id", h.ID, "name", h.Name, "leader_id", h.LeaderID)
	return nil
}

func (r *Repository) getHome(ctx context.Context, column, value string) (core.Home, error) {
	var row homeRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(
		`SELECT id, name, description, leader_id, created_at FROM homes WHERE `+column+` = ?`), value)
	if err != nil {
		return core.Home{}, fmt.Errorf("get home by %s: %w", column, classify(err))
	}

	var members []string
	err = r.db.SelectContext(ctx, &members, r.db.Rebind(
		`SELECT id FROM users WHERE home_id = ? ORDER BY username`), row.ID)
	if err != nil {
		return core.Home{}, fmt.Errorf("get home members: %w", classify(err))
	}

	return core.Home{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		LeaderID:    row.LeaderID,
		MemberIDs:   members,
		CreatedAt:   row.CreatedAt.UTC(),
	}, nil
}

// DeleteHome removes the home, its contributions and every membership in one
// transaction.
func (r *Repository) DeleteHome(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete home: %w", classify(err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM contributions WHERE home_id = ?`), id); err != nil {
		return fmt.Errorf("delete home contributions: %w", classify(err))
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET home_id = NULL WHERE home_id = ?`), id); err != nil {
		return fmt.Errorf("delete home members: %w", classify(err))
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM homes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete home: %w", classify(err))
	}
	if err := expectOne(res, "delete home"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete home: %w", classify(err))
	}
	slog.InfoContext(ctx, "Home deleted", "home_id", id)
	return nil
}

func (r *Repository) GetHomeByID(ctx context.Context, id string) (core.Home, error) {
	return r.getHome(ctx, "id", id)
}

func (r *Repository) GetHomeByName(ctx context.Context, name string) (core.Home, error) {
	return r.getHome(ctx, "name", name)
}

const contributionColumns = `id, home_id, user_id, amount, description, created_at`

// CreateContribution inserts c, assigning its ID and creation time.
func (r *Repository) CreateContribution(ctx context.Context, c *core.Contribution) error {
	c.ID = uuid.NewString()
	c.CreatedAt = r.timestamp()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO contributions (`+contributionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		c.ID, c.HomeID, c.UserID, c.Amount.StringFixed(2), c.Description, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create contribution: %w", classify(err))
	}
	slog.InfoContext(ctx, "Contribution saved",
		"id", c.ID,
		"home_id", c.HomeID,
		"user_id", c.UserID,
		"amount", c.Amount.StringFixed(2))
	return nil
}

func (r *Repository) GetContributionByID(ctx context.Context, id string) (core.Contribution, error) {
	var row contributionRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(
		`SELECT `+contributionColumns+` FROM contributions WHERE id = ?`), id)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("get contribution by id: %w", classify(err))
	}
	return row.toCore(), nil
}

// ListContributionsByHome returns the home's contributions, newest first.
func (r *Repository) ListContributionsByHome(ctx context.Context, homeID string) ([]core.Contribution, error) {
	return r.listContributions(ctx, "home_id", homeID)
}

// ListContributionsByUser returns the user's contributions, newest first.
func (r *Repository) ListContributionsByUser(ctx context.Context, userID string) ([]core.Contribution, error) {
	return r.listContributions(ctx, "user_id", userID)
}

func (r *Repository) listContributions(ctx context.Context, column, value string) ([]core.Contribution, error) {
	var rows []contributionRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT `+contributionColumns+` FROM contributions WHERE `+column+` = ?
		 ORDER BY created_at DESC, id DESC`), value)
	if err != nil {
		return nil, fmt.Errorf("list contributions by %s: %w", column, classify(err))
	}
	out := make([]core.Contribution, len(rows))
	for i, row := range rows {
		out[i] = row.toCore()
	}
	return out, nil
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
