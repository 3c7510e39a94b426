package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/highway-inspection/internal/database"
	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
	"github.com/iliyamo/highway-inspection/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = "id,username,password_hash,role,created_at,updated_at"

// Create hashes password and inserts the user, returning its ID.
func (r *UserRepo) Create(ctx context.Context, username, password string, role model.Role, cost int) (uint64, error) {
	username = strings.TrimSpace(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role) VALUES (?,?,?)",
		username, hash, role)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	return lastID(res)
}

// GetByUsername fetches a user by login name.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE username=? LIMIT 1",
		strings.TrimSpace(username)).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, service.ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, noRows(err, "user", id)
	}
	return u, nil
}

// List pages through users ordered by id.
func (r *UserRepo) List(ctx context.Context, p model.Page) ([]model.User, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userCols+" FROM users ORDER BY id LIMIT ? OFFSET ?", p.PageSize, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Update sets whichever of password and role is non-nil and returns the
// stored row.
func (r *UserRepo) Update(ctx context.Context, id uint64, password *string, role *model.Role, cost int) (model.User, error) {
	var sets []string
	var args []any
	if password != nil {
		hash, err := utils.HashPassword(*password, cost)
		if err != nil {
			return model.User{}, err
		}
		sets = append(sets, "password_hash=?")
		args = append(args, hash)
	}
	if role != nil {
		sets = append(sets, "role=?")
		args = append(args, *role)
	}
	if len(sets) > 0 {
		res, err := r.DB.ExecContext(ctx,
			"UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", append(args, id)...)
		if err != nil {
			return model.User{}, err
		}
		if err := checkAffected(res, "user", id); err != nil {
			return model.User{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// Delete removes a user. Refresh tokens cascade; applications and missions
// block the delete.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return service.ErrHasDependents
		}
		return err
	}
	return checkAffected(res, "user", id)
}
