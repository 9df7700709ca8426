// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/dayvault/auth"
	"github.com/danielhkuo/dayvault/models"
)

var (
	ErrOverflow          = errors.New("lamport arithmetic overflow")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrNotCustodial      = errors.New("account is not custody-owned")
	ErrNotExternal       = errors.New("account is not externally owned")
	ErrNegativeAmount    = errors.New("amount must be non-negative")
)

// CheckedAdd returns a+b or ErrOverflow. Amounts are never negative.
func CheckedAdd(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrNegativeAmount
	}
	if a > math.MaxInt64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// CheckedSub returns a-b or ErrOverflow when the result would go negative.
func CheckedSub(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrNegativeAmount
	}
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// CheckedMul returns a*b or ErrOverflow.
func CheckedMul(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrNegativeAmount
	}
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxInt64/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

// CreateAccount inserts a zero-balance account row
func CreateAccount(tx *sql.Tx, address, owner string, now time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO account (address, owner, balance_lamports, created_at)
		VALUES ($1, $2, 0, $3)
	`, address, owner, now)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", address, err)
	}
	return nil
}

// GetAccount loads an account row inside the transaction
func GetAccount(tx *sql.Tx, address string) (models.Account, error) {
	var acct models.Account
	err := tx.QueryRow(`
		SELECT address, owner, balance_lamports FROM account WHERE address = $1
	`, address).Scan(&acct.Address, &acct.Owner, &acct.BalanceLamports)
	if err == sql.ErrNoRows {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to load account %s: %w", address, err)
	}
	return acct, nil
}

// Balance returns the current balance of an account
func Balance(tx *sql.Tx, address string) (int64, error) {
	acct, err := GetAccount(tx, address)
	if err != nil {
		return 0, err
	}
	return acct.BalanceLamports, nil
}

// Credit mints amount into an account. Operator-only path, used for
// funding external accounts; journaled with an empty source address.
func Credit(tx *sql.Tx, address string, amount int64, reason string, now time.Time) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	acct, err := GetAccount(tx, address)
	if err != nil {
		return err
	}
	balance, err := CheckedAdd(acct.BalanceLamports, amount)
	if err != nil {
		return err
	}
	if err := setBalance(tx, address, balance); err != nil {
		return err
	}
	return journal(tx, "", address, amount, reason, now)
}

// Transfer moves amount between accounts, debiting an externally owned
// source. Fails without side effects when funds are insufficient; the
// caller's transaction boundary makes the two balance writes atomic.
func Transfer(tx *sql.Tx, from, to string, amount int64, reason string, now time.Time) error {
	src, err := GetAccount(tx, from)
	if err != nil {
		return err
	}
	if src.Owner != models.OwnerExternal {
		return ErrNotExternal
	}
	return move(tx, src, to, amount, reason, now)
}

// EscrowTransfer moves amount out of a custody-owned escrow account. The
// debit is gated on the derived-address capability token; no external
// signer can produce it.
func EscrowTransfer(tx *sql.Tx, escrow, to string, amount int64, authority, salt, reason string, now time.Time) error {
	if err := auth.ValidateEscrowAuthority(escrow, authority, salt); err != nil {
		return err
	}
	src, err := GetAccount(tx, escrow)
	if err != nil {
		return err
	}
	if src.Owner != models.OwnerCustody {
		return ErrNotCustodial
	}
	return move(tx, src, to, amount, reason, now)
}

func move(tx *sql.Tx, src models.Account, to string, amount int64, reason string, now time.Time) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if src.BalanceLamports < amount {
		return ErrInsufficientFunds
	}
	dst, err := GetAccount(tx, to)
	if err != nil {
		return err
	}
	srcBalance, err := CheckedSub(src.BalanceLamports, amount)
	if err != nil {
		return err
	}
	dstBalance, err := CheckedAdd(dst.BalanceLamports, amount)
	if err != nil {
		return err
	}
	if err := setBalance(tx, src.Address, srcBalance); err != nil {
		return err
	}
	if err := setBalance(tx, dst.Address, dstBalance); err != nil {
		return err
	}
	return journal(tx, src.Address, dst.Address, amount, reason, now)
}

func setBalance(tx *sql.Tx, address string, balance int64) error {
	res, err := tx.Exec(`
		UPDATE account SET balance_lamports = $1 WHERE address = $2
	`, balance, address)
	if err != nil {
		return fmt.Errorf("failed to update balance for %s: %w", address, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func journal(tx *sql.Tx, from, to string, amount int64, reason string, now time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO transfer (id, from_address, to_address, amount_lamports, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), from, to, amount, reason, now)
	if err != nil {
		return fmt.Errorf("failed to journal transfer: %w", err)
	}
	return nil
}
