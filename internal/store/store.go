// Package store persists user and transaction records. Services receive
// the Store interface so the backing implementation can be swapped
// without touching authorization or ledger logic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const TransactionTypeTransfer = "transfer"

var (
	ErrNotFound          = errors.New("store: not found")
	ErrConflict          = errors.New("store: already exists")
	ErrInsufficientFunds = errors.New("store: insufficient funds")
)

// User is a wallet holder. Balance always carries two decimal places and
// never goes negative. ID and Username are immutable after creation.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         string          `json:"role"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Transaction is an immutable ledger record.
type Transaction struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"sender_id"`
	RecipientID string          `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Store describes the persistence operations the services need.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// ExecuteTransfer debits the sender, credits the recipient and
	// appends the transaction record in one critical section, so two
	// concurrent transfers can never pass the funds check against a
	// stale balance. Returns the appended record and the new sender
	// balance.
	ExecuteTransfer(ctx context.Context, senderID, recipientID string, amount decimal.Decimal) (Transaction, decimal.Decimal, error)

	// SetBalance overwrites a user's balance and returns the old value.
	SetBalance(ctx context.Context, userID string, balance decimal.Decimal) (decimal.Decimal, error)

	// ListTransactions returns every transaction the user sent or
	// received, oldest first.
	ListTransactions(ctx context.Context, userID string) ([]Transaction, error)
}
