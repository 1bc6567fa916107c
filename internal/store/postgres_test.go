package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func newMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func userRows(u User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "balance", "created_at"}).
		AddRow(u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.Balance.String(), u.CreatedAt)
}

func TestPostgresGetUser(t *testing.T) {
	s, mock := newMock(t)
	want := User{
		ID:           "u1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "h",
		Role:         RoleUser,
		Balance:      decimal.NewFromInt(42),
		CreatedAt:    time.Now().UTC(),
	}
	mock.ExpectQuery(regexp.QuoteMeta(`select id, username, email, password_hash, role, balance, created_at from users where id=$1`)).
		WithArgs("u1").
		WillReturnRows(userRows(want))

	got, err := s.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "alice" || !got.Balance.Equal(want.Balance) {
		t.Fatalf("GetUser returned %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresGetUserNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`select .+ from users where id=\$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "balance", "created_at"}))

	if _, err := s.GetUser(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPostgresCreateUserConflict(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`insert into users`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "users_username_key" (SQLSTATE 23505)`))

	u := User{Username: "alice", Email: "a@b", PasswordHash: "h", Role: RoleUser}
	if err := s.CreateUser(context.Background(), &u); !errors.Is(err, ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
}

func TestPostgresExecuteTransfer(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select id, balance from users where id in \(\$1,\$2\) order by id for update`).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).
			AddRow("a", "100.00").
			AddRow("b", "0.00"))
	mock.ExpectExec(`update users set balance = balance - \$1 where id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update users set balance = balance \+ \$1 where id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into transactions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, newBalance, err := s.ExecuteTransfer(context.Background(), "a", "b", decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("ExecuteTransfer: %v", err)
	}
	if !newBalance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("sender balance = %s, want 60", newBalance)
	}
	if tx.SenderID != "a" || tx.RecipientID != "b" {
		t.Fatalf("transaction = %+v", tx)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresExecuteTransferInsufficientFunds(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select id, balance from users where id in \(\$1,\$2\) order by id for update`).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).
			AddRow("a", "10.00").
			AddRow("b", "0.00"))
	mock.ExpectRollback()

	_, _, err := s.ExecuteTransfer(context.Background(), "a", "b", decimal.NewFromInt(11))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresExecuteTransferUnknownSender(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select id, balance from users where id in \(\$1,\$2\) order by id for update`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).AddRow("b", "0.00"))
	mock.ExpectRollback()

	_, _, err := s.ExecuteTransfer(context.Background(), "a", "b", decimal.NewFromInt(1))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPostgresSetBalance(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select balance from users where id=\$1 for update`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("25.00"))
	mock.ExpectExec(`update users set balance=\$1 where id=\$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	old, err := s.SetBalance(context.Background(), "u1", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	if !old.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("old balance = %s, want 25", old)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresListTransactionsUnknownUser(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`select exists`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if _, err := s.ListTransactions(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
