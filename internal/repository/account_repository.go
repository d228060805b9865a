package repository

import (
	"database/sql"
	"fmt"

	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/pkg/database"
)

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create 새 계정 생성
func (r *AccountRepository) Create(id, username, passwordHash string) (*models.Account, error) {
	query := `
		INSERT INTO accounts (id, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, created_at, updated_at
	`

	account := &models.Account{}
	err := r.db.QueryRow(query, id, username, passwordHash).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// FindByUsername 사용자명으로 계정 찾기
func (r *AccountRepository) FindByUsername(username string) (*models.Account, error) {
	query := `
		SELECT id, username, password_hash, created_at, updated_at
		FROM accounts
		WHERE username = $1
	`

	account := &models.Account{}
	err := r.db.QueryRow(query, username).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil // 계정 없음
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return account, nil
}

// FindByID ID로 계정 찾기
func (r *AccountRepository) FindByID(id string) (*models.Account, error) {
	query := `
		SELECT id, username, password_hash, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	account := &models.Account{}
	err := r.db.QueryRow(query, id).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return account, nil
}
