package db

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/model"
)

const userColumns = `id::text, username, email, password_hash, role, status, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

// CreateUser inserts u, assigning an id and timestamps when unset.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), string(u.Status), u.CreatedAt, u.UpdatedAt)
	return userWriteError(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NewNotFoundError("User", id)
	}
	u, err := scanUser(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("User", id)
	}
	return u, err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("User", "")
	}
	return u, err
}

// UpdateUser persists the mutable profile fields of u.
func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now().UTC()
	tag, err := s.Pool.Exec(ctx, `
		UPDATE users
		SET email=$2, role=$3, status=$4, updated_at=$5
		WHERE id=$1
	`, u.ID, u.Email, string(u.Role), string(u.Status), u.UpdatedAt)
	if err != nil {
		return userWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("User", u.ID)
	}
	return nil
}

func (s *Store) SetPassword(ctx context.Context, id, hash string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE users SET password_hash=$2, updated_at=now() WHERE id=$1
	`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("User", id)
	}
	return nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `UPDATE users SET last_login=$2 WHERE id=$1`, id, at)
	return err
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NewNotFoundError("User", id)
	}
	tag, err := s.Pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("User", id)
	}
	return nil
}

// ListUsers returns one page of users, newest first, and the total match count.
func (s *Store) ListUsers(ctx context.Context, f model.UserFilter) ([]model.User, int, error) {
	q := newQuery()
	if f.Search != "" {
		p := q.arg("%" + escapeLike(f.Search) + "%")
		q.where("(username ILIKE " + p + " OR email ILIKE " + p + ")")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM users`+q.clause(), q.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	sql := `SELECT ` + userColumns + ` FROM users` + q.clause() +
		` ORDER BY created_at DESC LIMIT ` + q.arg(page.Limit) + ` OFFSET ` + q.arg(page.Offset())
	rows, err := s.Pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.User, 0, page.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UserStats counts accounts; RecentRegistrations counts users created after since.
func (s *Store) UserStats(ctx context.Context, since time.Time) (model.UserStats, error) {
	var st model.UserStats
	err := s.Pool.QueryRow(ctx, `
		SELECT
		  count(*),
		  count(*) FILTER (WHERE status='active'),
		  count(*) FILTER (WHERE status='inactive'),
		  count(*) FILTER (WHERE role='administrator'),
		  count(*) FILTER (WHERE role='user'),
		  count(*) FILTER (WHERE created_at >= $1)
		FROM users
	`, since).Scan(&st.TotalUsers, &st.ActiveUsers, &st.InactiveUsers, &st.AdminUsers, &st.RegularUsers, &st.RecentRegistrations)
	return st, err
}

func userWriteError(err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := isUniqueViolation(err); ok {
		switch constraint {
		case "idx_users_username":
			return errors.NewAlreadyExistsError("User", "Username already exists")
		case "idx_users_email":
			return errors.NewAlreadyExistsError("User", "Email already exists")
		}
		return errors.NewAlreadyExistsError("User", "User already exists")
	}
	return err
}
