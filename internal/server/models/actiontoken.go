package models

import "time"

// ActionKind is the purpose an action token was issued for.
type ActionKind string

const (
	ActionActivate ActionKind = "activate"
	ActionForgot   ActionKind = "forgot"
)

// ActionToken is a single-use token bound to one account and one kind.
type ActionToken struct {
	ID        string
	Token     string
	AccountID string
	Kind      ActionKind
	IssuedAt  time.Time
}
