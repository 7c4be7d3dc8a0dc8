package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"

	"faceattend/internal/models"
)

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicate is returned when the username is taken.
	ErrDuplicate = errors.New("admin already exists")
)

// dummyHash keeps the unknown-user path as slow as a real comparison.
var dummyHash = sync.OnceValue(func() string {
	h, _ := HashPassword("faceattend")
	return h
})

// Admins authenticates and creates administrator accounts.
type Admins struct {
	db *gorm.DB
}

// NewAdmins creates an admin store.
func NewAdmins(db *gorm.DB) *Admins {
	return &Admins{db: db}
}

// Authenticate returns the admin when username and password match.
func (a *Admins) Authenticate(ctx context.Context, username, password string) (*models.Admin, error) {
	var admin models.Admin
	err := a.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		CheckPassword(dummyHash(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(admin.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &admin, nil
}

// CreateAdmin stores a new admin with a hashed password.
func (a *Admins) CreateAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	admin := models.Admin{Username: username, PasswordHash: hash}
	if err := a.db.WithContext(ctx).Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &admin, nil
}
