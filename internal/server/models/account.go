// Package models defines server-side data models persisted in the database.
package models

import "time"

// AccountStatus is the activation state of an account.
type AccountStatus string

const (
	AccountPending AccountStatus = "pending"
	AccountActive  AccountStatus = "active"
)

// Account is an identity record. Email is stored normalized (trimmed,
// lower case) and is unique.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Status       AccountStatus
	// Avatar is the object-storage key of the current avatar, empty if none.
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the account has been activated.
func (a *Account) IsActive() bool {
	return a.Status == AccountActive
}
