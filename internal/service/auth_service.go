package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"drivehub/internal/db"
	"drivehub/internal/repository"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, name, email, phone, password string, role db.Role) (*db.User, error)
}

type authService struct {
	users     repository.UserRepository
	jwtSecret string
}

func NewAuthService(users repository.UserRepository, jwtSecret string) AuthService {
	return &authService{users: users, jwtSecret: jwtSecret}
}

func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	if s.jwtSecret == "" {
		return "", errors.New("JWT_SECRET not set")
	}

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *authService) Register(ctx context.Context, name, email, phone, password string, role db.Role) (*db.User, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password cannot be empty")
	}
	switch role {
	case db.RoleRenter, db.RoleOwner:
	default:
		return nil, errors.New("role must be renter or owner")
	}

	user := &db.User{
		ID:    uuid.New().String(),
		Name:  name,
		Email: email,
		Phone: phone,
		Role:  role,
	}
	if err := s.users.Create(ctx, user, password); err != nil {
		return nil, err
	}
	return user, nil
}
