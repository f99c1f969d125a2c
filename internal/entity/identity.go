package entity

import (
	"time"
)

// Identity is an authenticatable login. PasswordHash never leaves the identity package.
type Identity struct {
	ID           string            `json:"id"`
	Login        string            `json:"login"`
	PasswordHash string            `json:"-"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
