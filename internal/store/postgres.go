package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"walletd.org/internal/ids"
)

var _ Store = (*Postgres)(nil)

// Postgres implements Store on PostgreSQL via database/sql (pgx stdlib
// driver). ExecuteTransfer relies on ordered row locks for the
// serialization the in-memory store gets from its mutex.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
create table if not exists users (
    id            text primary key,
    username      text not null unique,
    email         text not null,
    password_hash text not null,
    role          text not null,
    balance       numeric(20,2) not null check (balance >= 0),
    created_at    timestamptz not null default now()
);
create table if not exists transactions (
    id           text primary key,
    sender_id    text not null references users(id),
    recipient_id text not null references users(id),
    amount       numeric(20,2) not null check (amount > 0),
    type         text not null,
    created_at   timestamptz not null default now()
);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Postgres) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, username, email, password_hash, role, balance, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.Balance, u.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

const userColumns = `id, username, email, password_hash, role, balance, created_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Balance, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Postgres) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *Postgres) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1`, username))
}

func (s *Postgres) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Balance, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Postgres) ExecuteTransfer(ctx context.Context, senderID, recipientID string, amount decimal.Decimal) (Transaction, decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, decimal.Decimal{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock both rows in id order so concurrent opposite-direction
	// transfers cannot deadlock.
	first, second := senderID, recipientID
	if second < first {
		first, second = second, first
	}
	rows, err := tx.QueryContext(ctx,
		`select id, balance from users where id in ($1,$2) order by id for update`,
		first, second)
	if err != nil {
		return Transaction{}, decimal.Decimal{}, err
	}
	balances := make(map[string]decimal.Decimal, 2)
	for rows.Next() {
		var (
			id  string
			bal decimal.Decimal
		)
		if err := rows.Scan(&id, &bal); err != nil {
			rows.Close()
			return Transaction{}, decimal.Decimal{}, err
		}
		balances[id] = bal
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Transaction{}, decimal.Decimal{}, err
	}
	senderBalance, ok := balances[senderID]
	if !ok {
		return Transaction{}, decimal.Decimal{}, ErrNotFound
	}
	if _, ok := balances[recipientID]; !ok {
		return Transaction{}, decimal.Decimal{}, ErrNotFound
	}
	if senderBalance.LessThan(amount) {
		return Transaction{}, decimal.Decimal{}, ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx,
		`update users set balance = balance - $1 where id = $2`, amount, senderID); err != nil {
		return Transaction{}, decimal.Decimal{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`update users set balance = balance + $1 where id = $2`, amount, recipientID); err != nil {
		return Transaction{}, decimal.Decimal{}, err
	}

	rec := Transaction{
		ID:          ids.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		Type:        TransactionTypeTransfer,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`insert into transactions(id, sender_id, recipient_id, amount, type, created_at)
		 values($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.SenderID, rec.RecipientID, rec.Amount, rec.Type, rec.CreatedAt); err != nil {
		return Transaction{}, decimal.Decimal{}, err
	}

	if err := tx.Commit(); err != nil {
		return Transaction{}, decimal.Decimal{}, err
	}
	return rec, senderBalance.Sub(amount), nil
}

func (s *Postgres) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var old decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`select balance from users where id=$1 for update`, userID).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, ErrNotFound
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`update users set balance=$1 where id=$2`, balance, userID); err != nil {
		return decimal.Decimal{}, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Decimal{}, err
	}
	return old, nil
}

func (s *Postgres) ListTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from users where id=$1)`, userID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`select id, sender_id, recipient_id, amount, type, created_at
		 from transactions where sender_id=$1 or recipient_id=$1
		 order by created_at asc, id asc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.SenderID, &t.RecipientID, &t.Amount, &t.Type, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// isUniqueViolation matches the SQLSTATE for unique constraint errors
// without binding the store to one driver's error type.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}

// Ping verifies connectivity; used by the readiness probe.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
