package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"drivehub/internal/db"
	apperr "drivehub/internal/errors"
)

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByID(ctx context.Context, id string) (*db.User, error)
	Create(ctx context.Context, u *db.User, password string) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(database *sql.DB) UserRepository {
	return &userRepository{db: database}
}

const userSelect = `SELECT id, name, email, phone, role, password_hash, created_at FROM users`

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	var u db.User
	var role string
	err := r.db.QueryRowContext(ctx, userSelect+` WHERE email = $1`, email).Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by email: %w: %v", apperr.ErrStorage, err)
	}
	u.Role = db.Role(role)
	return &u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*db.User, error) {
	var u db.User
	var role string
	err := r.db.QueryRowContext(ctx, userSelect+` WHERE id = $1`, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w: %v", apperr.ErrStorage, err)
	}
	u.Role = db.Role(role)
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, u *db.User, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hashed)

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, phone, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at`,
		u.ID, u.Name, u.Email, u.Phone, string(u.Role), u.PasswordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w: %v", apperr.ErrStorage, err)
	}
	return nil
}
