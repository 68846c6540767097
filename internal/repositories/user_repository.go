package repositories

import (
	"context"
	"encoding/json"

	"fieldops-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = "employee" // Default role
	}
	if !u.IsActive {
		u.IsActive = true // Default to active
	}
	if u.AccessLevels == nil {
		u.AccessLevels = map[string]int{}
	}
	levels, err := json.Marshal(u.AccessLevels)
	if err != nil {
		return err
	}
	return r.DB.QueryRow(ctx,
		`INSERT INTO users(name, email, password_hash, role, access_levels, is_active)
         VALUES($1, $2, $3, $4, $5, $6)
         RETURNING id, created_at, updated_at`,
		u.Name, u.Email, u.PasswordHash, u.Role, levels, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepository) Get(ctx context.Context, id int) (*models.User, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, access_levels, is_active, created_at, updated_at
         FROM users WHERE id=$1`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, access_levels, is_active, created_at, updated_at
         FROM users WHERE email=$1`, email)
	return scanUser(row)
}

type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanUser(row pgxRow) (*models.User, error) {
	var user models.User
	var levels []byte
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Role, &levels, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.AccessLevels = map[string]int{}
	if len(levels) > 0 {
		if err := json.Unmarshal(levels, &user.AccessLevels); err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// List returns all users
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, name, email, password_hash, role, access_levels, is_active, created_at, updated_at
         FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = ""
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateAccess replaces a user's per-module access levels
func (r *UserRepository) UpdateAccess(ctx context.Context, id int, accessLevels map[string]int) error {
	levels, err := json.Marshal(accessLevels)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx,
		`UPDATE users SET access_levels=$1, updated_at=NOW() WHERE id=$2`, levels, id)
	return err
}
