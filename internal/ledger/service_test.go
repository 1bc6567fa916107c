package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"walletd.org/internal/audit"
	"walletd.org/internal/auth"
	"walletd.org/internal/store"
)

func newLedger(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return New(st, audit.NewTrail(), decimal.NewFromInt(1_000_000)), st
}

func addUser(t *testing.T, st *store.Memory, username string, balance string) store.User {
	t.Helper()
	bal, err := decimal.NewFromString(balance)
	if err != nil {
		t.Fatalf("bad balance %q: %v", balance, err)
	}
	u := store.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         store.RoleUser,
		Balance:      bal,
	}
	if err := st.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestRound(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10", "10"},
		{"10.004", "10"},
		{"10.005", "10.01"},
		{"10.995", "11"},
		{"-10.005", "-10.01"},
		{"0.1", "0.1"},
	}
	for _, tt := range tests {
		in, _ := decimal.NewFromString(tt.in)
		want, _ := decimal.NewFromString(tt.want)
		if got := Round(in); !got.Equal(want) {
			t.Errorf("Round(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestTransfer(t *testing.T) {
	svc, st := newLedger(t)
	alice := addUser(t, st, "alice", "100.00")
	bob := addUser(t, st, "bob", "0.00")

	tx, balance, err := svc.Transfer(context.Background(), alice.ID, bob.ID, decimal.NewFromFloat(40.555))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	// 40.555 rounds to 40.56 before the debit.
	if !tx.Amount.Equal(decimal.NewFromFloat(40.56)) {
		t.Fatalf("amount = %s, want 40.56", tx.Amount)
	}
	if !balance.Equal(decimal.NewFromFloat(59.44)) {
		t.Fatalf("balance = %s, want 59.44", balance)
	}
}

// The amount is rounded before the funds check, so an amount that only
// exceeds the balance after rounding is still rejected.
func TestTransferRoundsBeforeFundsCheck(t *testing.T) {
	svc, st := newLedger(t)
	alice := addUser(t, st, "alice", "1000.00")
	bob := addUser(t, st, "bob", "0.00")

	_, _, err := svc.Transfer(context.Background(), alice.ID, bob.ID, decimal.NewFromFloat(1000.005))
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
}

func TestTransferInvalidAmount(t *testing.T) {
	svc, st := newLedger(t)
	alice := addUser(t, st, "alice", "100.00")
	bob := addUser(t, st, "bob", "0.00")

	tests := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"zero", decimal.Zero},
		{"negative", decimal.NewFromInt(-5)},
		{"rounds to zero", decimal.NewFromFloat(0.004)},
		{"over ceiling", decimal.NewFromInt(1_000_001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Transfer(context.Background(), alice.ID, bob.ID, tt.amount)
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("got %v, want ErrInvalidAmount", err)
			}
		})
	}
}

func TestTransferToSelf(t *testing.T) {
	svc, st := newLedger(t)
	alice := addUser(t, st, "alice", "100.00")

	_, _, err := svc.Transfer(context.Background(), alice.ID, alice.ID, decimal.NewFromInt(10))
	if !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("got %v, want ErrSelfTransfer", err)
	}
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	svc, st := newLedger(t)
	alice := addUser(t, st, "alice", "1000.00")
	bob := addUser(t, st, "bob", "0.00")

	amount := decimal.NewFromInt(600)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Transfer(context.Background(), alice.ID, bob.ID, amount)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, store.ErrInsufficientFunds) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d transfers succeeded, want exactly 1", ok)
	}

	gotAlice, _ := st.GetUser(context.Background(), alice.ID)
	gotBob, _ := st.GetUser(context.Background(), bob.ID)
	if total := gotAlice.Balance.Add(gotBob.Balance); !total.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("total = %s, want 1000", total)
	}
}

func TestSetBalanceRequiresAdmin(t *testing.T) {
	svc, st := newLedger(t)
	alice := addUser(t, st, "alice", "100.00")

	actor := auth.Principal{UserID: alice.ID, Role: store.RoleUser}
	_, err := svc.SetBalance(context.Background(), actor, alice.ID, decimal.NewFromInt(50))
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestSetBalance(t *testing.T) {
	svc, st := newLedger(t)
	alice := addUser(t, st, "alice", "25.00")
	admin := auth.Principal{UserID: "admin-1", Role: store.RoleAdmin}

	got, err := svc.SetBalance(context.Background(), admin, alice.ID, decimal.NewFromFloat(99.999))
	if err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance = %s, want 100", got)
	}

	entries := svc.Trail().Entries()
	if len(entries) != 1 {
		t.Fatalf("trail has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ActorID != "admin-1" || e.TargetID != alice.ID {
		t.Fatalf("trail entry = %+v", e)
	}
	if !e.OldValue.Equal(decimal.NewFromInt(25)) || !e.NewValue.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("trail values = %s -> %s", e.OldValue, e.NewValue)
	}
}

func TestSetBalanceBounds(t *testing.T) {
	svc, st := newLedger(t)
	alice := addUser(t, st, "alice", "25.00")
	admin := auth.Principal{UserID: "admin-1", Role: store.RoleAdmin}

	if _, err := svc.SetBalance(context.Background(), admin, alice.ID, decimal.NewFromInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative: got %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.SetBalance(context.Background(), admin, alice.ID, decimal.NewFromInt(1_000_001)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("over ceiling: got %v, want ErrInvalidAmount", err)
	}
	// Zero is a legal override target.
	if _, err := svc.SetBalance(context.Background(), admin, alice.ID, decimal.Zero); err != nil {
		t.Fatalf("zero: %v", err)
	}
	if _, err := svc.SetBalance(context.Background(), admin, "missing", decimal.NewFromInt(1)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing user: got %v, want ErrNotFound", err)
	}
}
