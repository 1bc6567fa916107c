// Package ledger applies balance transfers and the admin balance
// override, enforcing the monetary invariants.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"walletd.org/internal/audit"
	"walletd.org/internal/auth"
	"walletd.org/internal/obs"
	"walletd.org/internal/store"
)

var (
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	ErrSelfTransfer  = errors.New("ledger: self transfer")
)

const actionBalanceOverride = "ledger.balance.override"

// Round normalizes a monetary value to two decimal places, half away
// from zero. Applied before every comparison and store write so repeated
// transfers cannot accumulate sub-cent drift.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Service owns transfer and override semantics on top of the store.
type Service struct {
	store   store.Store
	trail   *audit.Trail
	ceiling decimal.Decimal
}

// New creates a ledger with the given per-operation amount ceiling.
func New(st store.Store, trail *audit.Trail, ceiling decimal.Decimal) *Service {
	if trail == nil {
		trail = audit.NewTrail()
	}
	if !ceiling.IsPositive() {
		ceiling = decimal.NewFromInt(1_000_000)
	}
	return &Service{store: st, trail: trail, ceiling: Round(ceiling)}
}

// Trail exposes the override audit trail.
func (s *Service) Trail() *audit.Trail {
	return s.trail
}

// Transfer moves the rounded amount from sender to recipient and appends
// one transaction record. The funds check happens inside the store's
// critical section, so concurrent transfers from the same sender cannot
// jointly overdraw.
func (s *Service) Transfer(ctx context.Context, senderID, recipientID string, amount decimal.Decimal) (store.Transaction, decimal.Decimal, error) {
	amount = Round(amount)
	if !amount.IsPositive() || amount.GreaterThan(s.ceiling) {
		obs.TransfersTotal.WithLabelValues("rejected").Inc()
		return store.Transaction{}, decimal.Decimal{}, ErrInvalidAmount
	}
	if senderID == recipientID {
		obs.TransfersTotal.WithLabelValues("rejected").Inc()
		return store.Transaction{}, decimal.Decimal{}, ErrSelfTransfer
	}

	tx, newBalance, err := s.store.ExecuteTransfer(ctx, senderID, recipientID, amount)
	if err != nil {
		obs.TransfersTotal.WithLabelValues("rejected").Inc()
		return store.Transaction{}, decimal.Decimal{}, err
	}

	obs.TransfersTotal.WithLabelValues("ok").Inc()
	_ = audit.LogEvent(ctx, "ledger.transfer", map[string]any{
		"transaction_id": tx.ID,
		"sender_id":      senderID,
		"recipient_id":   recipientID,
		"amount":         amount.String(),
	})
	return tx, newBalance, nil
}

// SetBalance overwrites a user's balance. The HTTP layer already gates
// the route, but the admin check is repeated here so the policy stays
// the single gate even if a new caller forgets it. Each override is
// retained in the in-memory audit trail.
func (s *Service) SetBalance(ctx context.Context, actor auth.Principal, targetID string, newBalance decimal.Decimal) (decimal.Decimal, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return decimal.Decimal{}, err
	}
	newBalance = Round(newBalance)
	if newBalance.IsNegative() || newBalance.GreaterThan(s.ceiling) {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	old, err := s.store.SetBalance(ctx, targetID, newBalance)
	if err != nil {
		return decimal.Decimal{}, err
	}
	s.trail.Record(ctx, audit.Entry{
		ActorID:  actor.UserID,
		Action:   actionBalanceOverride,
		TargetID: targetID,
		OldValue: old,
		NewValue: newBalance,
	})
	return newBalance, nil
}
