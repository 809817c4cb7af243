package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miskit/backoffice/internal/domain/entity"
	"github.com/miskit/backoffice/internal/domain/repository"
)

const userColumns = `id, name, username, password, role, avatar, email, deleted, deleted_at, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var deletedAt sql.NullTime
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Password, &u.Role, &u.Avatar,
		&u.Email, &u.Deleted, &deletedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if deletedAt.Valid {
		u.DeletedAt = deletedAt.Time
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, username, password, role, avatar, email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, u.Name, u.Username, u.Password, u.Role, u.Avatar, u.Email)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation on the live-username index
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateUsername
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND NOT deleted
	`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 AND NOT deleted
	`, username)
	return scanUser(row)
}

func (r *UserRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND NOT deleted)
	`, username).Scan(&exists)
	return exists, err
}

// UpdateProfile overwrites only the supplied fields in one statement, so two
// concurrent edits to different fields cannot clobber each other.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, name, role *string) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = COALESCE($2, name),
		    role = COALESCE($3, role),
		    updated_at = now()
		WHERE id = $1 AND NOT deleted
	`, id, name, role)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// UpdatePassword is a compare-and-set: when oldDigest is non-nil the row only
// updates if the stored digest still matches, closing the check/update race.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, oldDigest *string, newDigest string) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password = $3, updated_at = now()
		WHERE id = $1 AND NOT deleted
		  AND ($2::text IS NULL OR password = $2)
	`, id, oldDigest, newDigest)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (r *UserRepository) SetAvatar(ctx context.Context, id int64, filename string) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET avatar = $2, updated_at = now()
		WHERE id = $1 AND NOT deleted
	`, id, filename)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// SoftDelete marks the row deleted. The NOT deleted guard makes a repeat
// delete match nothing, which the service reports as not found.
func (r *UserRepository) SoftDelete(ctx context.Context, id int64) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET deleted = TRUE, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND NOT deleted
	`, id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (r *UserRepository) List(ctx context.Context, f repository.ListFilter) ([]entity.User, int64, error) {
	where := []string{"NOT deleted"}
	args := []any{}

	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Role != "" {
		add("role = $%d", f.Role)
	}
	if f.Username != "" {
		add("username LIKE $%d", likePrefix(f.Username))
	}
	if f.Name != "" {
		add("name LIKE $%d", likeContains(f.Name))
	}
	if !f.IncludeAdmins {
		add("role <> $%d", entity.RoleAdministrator)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM users WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageNow := f.PageNow
	if pageNow < 1 {
		pageNow = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (pageNow - 1) * pageSize

	query := "SELECT " + userColumns + " FROM users WHERE " + cond +
		" ORDER BY id LIMIT " + strconv.Itoa(pageSize) + " OFFSET " + strconv.Itoa(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]entity.User, 0, pageSize)
	for rows.Next() {
		u := entity.User{}
		var deletedAt sql.NullTime
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.Password, &u.Role, &u.Avatar,
			&u.Email, &u.Deleted, &deletedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if deletedAt.Valid {
			u.DeletedAt = deletedAt.Time
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func likePrefix(s string) string   { return escapeLike(s) + "%" }
func likeContains(s string) string { return "%" + escapeLike(s) + "%" }

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

var _ repository.UserRepository = (*UserRepository)(nil)
