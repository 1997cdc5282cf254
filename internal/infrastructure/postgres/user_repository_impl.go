package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, college, semester, default_payment_method,
	is_verified, verification_code, verification_code_created_at, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.College, &u.Semester,
		&u.DefaultPaymentMethod, &u.IsVerified, &u.VerificationCode, &u.VerificationCodeCreatedAt,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, college, semester, default_payment_method,
			is_verified, verification_code, verification_code_created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, u.Username, u.Email, u.PasswordHash, u.College, u.Semester, u.DefaultPaymentMethod,
		u.IsVerified, u.VerificationCode, u.VerificationCodeCreatedAt)

	return mapErr(row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, bool, error) {
	var usernameTaken, emailTaken bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM users WHERE username = $1),
			EXISTS (SELECT 1 FROM users WHERE email = $2)
	`, username, email).Scan(&usernameTaken, &emailTaken)
	return usernameTaken, emailTaken, mapErr(err)
}

func (r *UserRepository) VerificationCodeInUse(ctx context.Context, code string) (bool, error) {
	var inUse bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE verification_code = $1)`, code).Scan(&inUse)
	return inUse, mapErr(err)
}

func (r *UserRepository) ListByCollege(ctx context.Context, college string) ([]*entity.User, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE college = $1 ORDER BY username`, college)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, mapErr(rows.Err())
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	u.UpdatedAt = time.Now()

	res, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users
		SET email = $1, college = $2, semester = $3, default_payment_method = $4, is_verified = $5,
			verification_code = $6, verification_code_created_at = $7, updated_at = $8
		WHERE id = $9
	`, u.Email, u.College, u.Semester, u.DefaultPaymentMethod, u.IsVerified,
		u.VerificationCode, u.VerificationCodeCreatedAt, u.UpdatedAt, u.ID)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, hash, id)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
