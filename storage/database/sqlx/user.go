package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const uniqueViolation = "23505"

type userRow struct {
	ID           string    `db:"id"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	IsApproved   bool      `db:"is_approved"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    null.Time `db:"created_at"`
	UpdatedAt    null.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (row userRow) user() user.User {
	return user.User{
		ID:           row.ID,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Email:        row.Email,
		Role:         user.Role(row.Role),
		IsApproved:   row.IsApproved,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
		LastLogin:    row.LastLogin.Time,
	}
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		Email:        usr.Email,
		Role:         string(usr.Role),
		IsApproved:   usr.IsApproved,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func usersFromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	query := `SELECT COUNT(*) FROM "user" WHERE email = ?`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		inQuery, inArgs, err := sqlx.In("id NOT IN (?)", ids)
		if err != nil {
			return errors.Wrap(err, "building exclusion clause")
		}
		query += " AND " + inQuery
		args = append(args, inArgs...)
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := newUserRow(usr)
	query := `
		INSERT INTO "user" (id, first_name, last_name, email, role, is_approved, password_hash, created_at, updated_at, last_login)
		VALUES (:id, :first_name, :last_name, :email, :role, :is_approved, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM "user"`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersFromRows(rows), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, id); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE email = $1`, email); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsersByID(ctx context.Context, ids []string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersFromRows(rows), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	query := `SELECT * FROM "user"`
	var clauses []string
	var args []interface{}
	if filter.Role != "" {
		clauses = append(clauses, "role = ?")
		args = append(args, string(filter.Role))
	}
	if filter.IsApproved != nil {
		clauses = append(clauses, "is_approved = ?")
		args = append(args, *filter.IsApproved)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if len(ordering) > 0 {
		orders := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orders = append(orders, ord.String())
		}
		query += " ORDER BY " + strings.Join(orders, ", ")
	}

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return usersFromRows(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := newUserRow(usr)
	query := `
		UPDATE "user"
		SET first_name = :first_name, last_name = :last_name, email = :email, role = :role, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) SetUserApproval(ctx context.Context, id string, approved bool) (user.User, error) {
	query := `UPDATE "user" SET is_approved = $1, updated_at = NOW() WHERE id = $2`
	res, err := repo.db.ExecContext(ctx, query, approved, id)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting user approval")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, id)
}

func (repo userRepository) SetUserRole(ctx context.Context, id string, role user.Role, approved bool) (user.User, error) {
	query := `UPDATE "user" SET role = $1, is_approved = $2, updated_at = NOW() WHERE id = $3`
	res, err := repo.db.ExecContext(ctx, query, string(role), approved, id)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting user role")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, id)
}

func (repo userRepository) SetLastLogin(ctx context.Context, usr user.User) (user.User, error) {
	query := `UPDATE "user" SET last_login = $1 WHERE id = $2`
	if _, err := repo.db.ExecContext(ctx, query, usr.LastLogin, usr.ID); err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	return usr, nil
}

func (repo userRepository) SetUserPassword(ctx context.Context, usr user.User) (user.User, error) {
	query := `UPDATE "user" SET password_hash = $1, updated_at = $2 WHERE id = $3`
	res, err := repo.db.ExecContext(ctx, query, usr.PasswordHash, usr.UpdatedAt, usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting user password")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) DeleteUser(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return nil
}
