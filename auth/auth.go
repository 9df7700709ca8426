// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrInvalidAdminKey   = errors.New("invalid admin key")
	ErrInvalidAccountKey = errors.New("invalid account key")
	ErrInvalidAuthority  = errors.New("invalid escrow authority")
)

// OperatorSubject is the fixed HMAC subject for the operator admin key.
const OperatorSubject = "dayvault-operator"

// Derivation tags for program-owned storage locations. Any tooling that
// needs to locate a record must reproduce DeriveAddress with these tags.
const (
	TagConfig     = "config"
	TagAuctionDay = "auction_day"
	TagVault      = "vault"
	TagBidReceipt = "bid_receipt"
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateAdminKey creates an HMAC-based operator key.
// This is deterministic and verifiable without database storage.
func GenerateAdminKey(salt string) string {
	return hmacHex(salt, OperatorSubject)
}

// ValidateAdminKey checks the operator key against the configured salt
func ValidateAdminKey(adminKey, salt string) error {
	expected := GenerateAdminKey(salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// GenerateAccountKey creates the spending key for an external account.
// Deterministic from the account address, so it never needs storing.
func GenerateAccountKey(address, salt string) string {
	return hmacHex(salt, "account\x00"+address)
}

// ValidateAccountKey checks that accountKey authorizes spends from address
func ValidateAccountKey(address, accountKey, salt string) error {
	expected := GenerateAccountKey(address, salt)
	if !hmac.Equal([]byte(accountKey), []byte(expected)) {
		return ErrInvalidAccountKey
	}
	return nil
}

// DeriveAddress computes the deterministic storage address for a
// program-owned record from a fixed tag plus its entity keys. The same
// (salt, tag, keys) always yields the same address.
func DeriveAddress(salt, tag string, keys ...string) string {
	subject := tag
	for _, k := range keys {
		subject += "\x00" + k
	}
	sum := hmacSum(salt, subject)
	// 16 bytes is plenty of collision margin for storage addressing
	return hex.EncodeToString(sum[:16])
}

// EscrowAuthority computes the capability token that authorizes debits
// from a day's escrow account. Only program code that knows the config
// address salt can produce it; external callers cannot move escrowed funds.
func EscrowAuthority(salt, escrowAddress string) string {
	return hmacHex(salt, "escrow_authority\x00"+escrowAddress)
}

// ValidateEscrowAuthority checks a capability token for an escrow account
func ValidateEscrowAuthority(escrowAddress, authority, salt string) error {
	expected := EscrowAuthority(salt, escrowAddress)
	if !hmac.Equal([]byte(authority), []byte(expected)) {
		return ErrInvalidAuthority
	}
	return nil
}

func hmacSum(salt, subject string) []byte {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(subject))
	return h.Sum(nil)
}

func hmacHex(salt, subject string) string {
	return hex.EncodeToString(hmacSum(salt, subject))
}
