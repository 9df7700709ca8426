// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger manages account balances and the transfer journal.

All amounts are int64 lamports and every arithmetic step is checked;
an operation that would overflow or drive a balance negative fails
instead of wrapping.

# Accounts

Accounts are created with an owner that fixes who may debit them:

	err := ledger.CreateAccount(tx, address, models.OwnerExternal, now)

"external" accounts are debited via Transfer when the caller has proven
key possession. "custody" accounts hold escrowed funds and can only be
debited through EscrowTransfer with a valid authority token.

# Moving Funds

	err := ledger.Credit(tx, address, amount, "deposit", now)
	err := ledger.Transfer(tx, from, to, amount, "bid escrow", now)
	err := ledger.EscrowTransfer(tx, escrow, to, amount, authority, salt, "loser refund", now)

Every movement appends a row to the transfer journal with a reason
string, so any balance can be reconstructed from history. Credit mints
into an account (journal source is empty) and is reserved for
operator-authorized deposits.

# Checked Arithmetic

	sum, err := ledger.CheckedAdd(a, b)
	diff, err := ledger.CheckedSub(a, b)
	product, err := ledger.CheckedMul(a, b)

All return ErrOverflow on int64 overflow or underflow. Callers surface
these as math failures rather than persisting a wrapped value.

# Errors

  - ErrOverflow: arithmetic would wrap
  - ErrInsufficientFunds: debit exceeds balance
  - ErrAccountNotFound: no account at the address
  - ErrNotCustodial / ErrNotExternal: owner mismatch for the operation
  - ErrNegativeAmount: negative amount passed to a movement

All operations run inside the caller's *sql.Tx, so a handler that fails
mid-flow rolls back every movement it made.
*/
package ledger
