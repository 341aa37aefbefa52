package users

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user account. Accounts are created by the auth
// collaborator on registration and never deleted by this subsystem.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	LastLogin *time.Time
}
