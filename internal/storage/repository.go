// Package storage is the SQLite implementation of store.Backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"expensegroups/internal/core"
	"expensegroups/internal/store"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db    *sql.DB
	newID func() string
	now   func() time.Time
}

var _ store.Backend = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:    db,
		newID: uuid.NewString,
		now:   time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Expenses

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (string, error) {
	id := r.newID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, description, amount_cents, date, owner, group_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, e.Description, e.Amount.Cents, formatTime(e.Date), e.Owner, e.GroupID, formatTime(r.now()))
	if err != nil {
		return "", fmt.Errorf("failed to create expense: %w", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e    core.Expense
		date string
	)
	if err := s.Scan(&e.ID, &e.Description, &e.Amount.Cents, &date, &e.Owner, &e.GroupID); err != nil {
		return core.Expense{}, err
	}
	t, err := parseTime(date)
	if err != nil {
		return core.Expense{}, err
	}
	e.Date = t
	return e, nil
}

const expenseColumns = `id, description, amount_cents, date, owner, group_id`

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, store.NotFound("expense", id)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id string, patch core.ExpensePatch) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		e, err := scanExpense(tx.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return store.NotFound("expense", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get expense: %w", err)
		}
		e = patch.Apply(e)
		if _, err := tx.ExecContext(ctx,
			`UPDATE expenses SET description = ?, amount_cents = ? WHERE id = ?`,
			e.Description, e.Amount.Cents, id); err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NotFound("expense", id)
	}
	return nil
}

// Groups

func replaceMembers(ctx context.Context, tx *sql.Tx, groupID string, users []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("failed to clear group members: %w", err)
	}
	for i, u := range users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, position) VALUES (?, ?, ?)`,
			groupID, u, i); err != nil {
			return fmt.Errorf("failed to add group member: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) CreateGroup(ctx context.Context, g core.Group) (string, error) {
	id := r.newID()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expense_groups (id, owner, name) VALUES (?, ?, ?)`,
			id, g.Owner, g.Name); err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		return replaceMembers(ctx, tx, id, dedupe(g.Users))
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadMembers(ctx context.Context, q querier, groupID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY position`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()
	users := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func getGroup(ctx context.Context, q querier, id string) (core.Group, error) {
	var g core.Group
	err := q.QueryRowContext(ctx,
		`SELECT id, owner, name FROM expense_groups WHERE id = ?`, id).Scan(&g.ID, &g.Owner, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Group{}, store.NotFound("group", id)
	}
	if err != nil {
		return core.Group{}, fmt.Errorf("failed to get group: %w", err)
	}
	g.Users, err = loadMembers(ctx, q, id)
	if err != nil {
		return core.Group{}, err
	}
	return g, nil
}

func (r *SQLiteRepository) ListGroups(ctx context.Context) ([]core.Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, owner, name FROM expense_groups ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	groups := make([]core.Group, 0)
	for rows.Next() {
		var g core.Group
		if err := rows.Scan(&g.ID, &g.Owner, &g.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	// Release the connection before loading members: the pool holds one.
	rows.Close()

	for i := range groups {
		users, err := loadMembers(ctx, r.db, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Users = users
	}
	return groups, nil
}

func (r *SQLiteRepository) GetGroup(ctx context.Context, id string) (core.Group, error) {
	return getGroup(ctx, r.db, id)
}

func (r *SQLiteRepository) UpdateGroup(ctx context.Context, id string, patch core.GroupPatch) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		g, err := getGroup(ctx, tx, id)
		if err != nil {
			return err
		}
		updated, err := patch.Apply(g)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE expense_groups SET name = ? WHERE id = ?`, updated.Name, id); err != nil {
			return fmt.Errorf("failed to update group: %w", err)
		}
		if patch.Users != nil {
			return replaceMembers(ctx, tx, id, updated.Users)
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteGroup(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expense_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NotFound("group", id)
	}
	return nil
}

// Users

func replaceUserGroups(ctx context.Context, tx *sql.Tx, userID string, groups []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear user groups: %w", err)
	}
	for i, g := range groups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_groups (user_id, group_id, position) VALUES (?, ?, ?)`,
			userID, g, i); err != nil {
			return fmt.Errorf("failed to add user group: %w", err)
		}
	}
	return nil
}

// CreateUser writes the profile under id, replacing any existing one.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, name) VALUES (?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET email = excluded.email, name = excluded.name`,
			id, u.Email, u.Name); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return replaceUserGroups(ctx, tx, id, dedupe(u.Groups))
	})
}

func (r *SQLiteRepository) loadUserGroups(ctx context.Context, q querier, userID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT group_id FROM user_groups WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	defer rows.Close()
	groups := make([]string, 0)
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("failed to scan user group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *SQLiteRepository) getUser(ctx context.Context, q querier, where, arg string) (core.User, error) {
	var u core.User
	err := q.QueryRowContext(ctx, `SELECT id, email, name FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.NotFound("user", arg)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	u.Groups, err = r.loadUserGroups(ctx, q, u.ID)
	if err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	return r.getUser(ctx, r.db, "id = ?", id)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUser(ctx, r.db, "email = ? COLLATE NOCASE", email)
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, id string, patch core.UserPatch) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		u, err := r.getUser(ctx, tx, "id = ?", id)
		if err != nil {
			return err
		}
		u = patch.Apply(u)
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET email = ?, name = ? WHERE id = ?`, u.Email, u.Name, id); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		if patch.Groups != nil {
			return replaceUserGroups(ctx, tx, id, u.Groups)
		}
		return nil
	})
}

// Credentials

func (r *SQLiteRepository) CreateCredential(ctx context.Context, c store.Credential) error {
	created := c.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (id, email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.Identity.ID, strings.ToLower(c.Identity.Email), c.Identity.DisplayName, c.PasswordHash, formatTime(created))
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) getCredential(ctx context.Context, where, arg string) (store.Credential, error) {
	var (
		c       store.Credential
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM credentials WHERE `+where, arg).
		Scan(&c.Identity.ID, &c.Identity.Email, &c.Identity.DisplayName, &c.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Credential{}, store.NotFound("credential", arg)
	}
	if err != nil {
		return store.Credential{}, fmt.Errorf("failed to get credential: %w", err)
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return store.Credential{}, err
	}
	return c, nil
}

func (r *SQLiteRepository) GetCredentialByEmail(ctx context.Context, email string) (store.Credential, error) {
	return r.getCredential(ctx, "email = ?", strings.ToLower(email))
}

func (r *SQLiteRepository) GetCredential(ctx context.Context, id string) (store.Credential, error) {
	return r.getCredential(ctx, "id = ?", id)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
