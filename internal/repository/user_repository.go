package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lexamine/lexam-backend/internal/model"
)

const accountUserColumns = `id, name, org_name, id_no, phone, password_hash, locked, created_at`

// UserRepository handles candidate account persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID retrieves a candidate account by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.AccountUser, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+accountUserColumns+` FROM account_users WHERE id = $1`, id))
}

// GetByIDNo retrieves a candidate account by its login handle.
func (r *UserRepository) GetByIDNo(ctx context.Context, idNo string) (*model.AccountUser, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+accountUserColumns+` FROM account_users WHERE id_no = $1`, idNo))
}

// Create inserts a candidate account and fills the generated fields.
func (r *UserRepository) Create(ctx context.Context, u *model.AccountUser) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO account_users (name, org_name, id_no, phone, password_hash, locked)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		u.Name, u.OrgName, u.IDNo, u.Phone, u.PasswordHash, u.Locked,
	).Scan(&u.ID, &u.CreatedAt)
}

// ExistsByIDNo reports whether a candidate account with the handle exists.
func (r *UserRepository) ExistsByIDNo(ctx context.Context, idNo string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM account_users WHERE id_no = $1)`, idNo,
	).Scan(&exists)
	return exists, err
}

func (r *UserRepository) scanOne(row interface{ Scan(dest ...any) error }) (*model.AccountUser, error) {
	u := &model.AccountUser{}
	err := row.Scan(&u.ID, &u.Name, &u.OrgName, &u.IDNo, &u.Phone, &u.PasswordHash, &u.Locked, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}
