package auth

import (
	"time"

	"github.com/google/uuid"
)

// Account is the credential-bearing view of a user row.
type Account struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// TokenPair is returned on successful login.
type TokenPair struct {
	AccessToken string
	ExpiresAt   time.Time
}
