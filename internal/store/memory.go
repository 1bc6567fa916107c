package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"walletd.org/internal/ids"
)

var _ Store = (*Memory)(nil)

// Memory implements Store with in-process concurrency safety.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]*User  // id -> user
	byName   map[string]string // username -> id
	txs      []Transaction
	now      func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]*User),
		byName: make(map[string]string),
		now:    time.Now,
	}
}

func (s *Memory) CreateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[u.Username]; ok {
		return ErrConflict
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	cp := *u
	s.users[cp.ID] = &cp
	s.byName[cp.Username] = cp.ID
	return nil
}

func (s *Memory) GetUser(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (s *Memory) GetUserByUsername(ctx context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return *s.users[id], nil
}

func (s *Memory) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *Memory) ExecuteTransfer(ctx context.Context, senderID, recipientID string, amount decimal.Decimal) (Transaction, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sender, ok := s.users[senderID]
	if !ok {
		return Transaction{}, decimal.Decimal{}, ErrNotFound
	}
	recipient, ok := s.users[recipientID]
	if !ok {
		return Transaction{}, decimal.Decimal{}, ErrNotFound
	}

	// Funds check and mutation happen under the same lock.
	if sender.Balance.LessThan(amount) {
		return Transaction{}, decimal.Decimal{}, ErrInsufficientFunds
	}
	sender.Balance = sender.Balance.Sub(amount)
	recipient.Balance = recipient.Balance.Add(amount)

	tx := Transaction{
		ID:          ids.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		Type:        TransactionTypeTransfer,
		CreatedAt:   s.now().UTC(),
	}
	s.txs = append(s.txs, tx)
	return tx, sender.Balance, nil
}

func (s *Memory) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return decimal.Decimal{}, ErrNotFound
	}
	old := u.Balance
	u.Balance = balance
	return old, nil
}

func (s *Memory) ListTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[userID]; !ok {
		return nil, ErrNotFound
	}
	var out []Transaction
	for _, tx := range s.txs {
		if tx.SenderID == userID || tx.RecipientID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}
