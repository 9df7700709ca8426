// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"testing"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
		{"24 bytes", 24, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			// Verify it's valid hex
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	// Test randomness - two IDs should be different
	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestValidateAdminKey(t *testing.T) {
	salt := "test-salt"
	validKey := GenerateAdminKey(salt)

	tests := []struct {
		name     string
		adminKey string
		salt     string
		wantErr  bool
	}{
		{"valid key", validKey, salt, false},
		{"wrong key", "wrong-key", salt, true},
		{"wrong salt", validKey, "different-salt", true},
		{"empty key", "", salt, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAdminKey(tt.adminKey, tt.salt)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAdminKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != ErrInvalidAdminKey {
				t.Errorf("ValidateAdminKey() error = %v, want %v", err, ErrInvalidAdminKey)
			}
		})
	}
}

func TestValidateAccountKey(t *testing.T) {
	salt := "account-salt"
	address := "abc123"
	validKey := GenerateAccountKey(address, salt)

	tests := []struct {
		name       string
		address    string
		accountKey string
		salt       string
		wantErr    bool
	}{
		{"valid key", address, validKey, salt, false},
		{"wrong key", address, "wrong-key", salt, true},
		{"wrong address", "other-address", validKey, salt, true},
		{"wrong salt", address, validKey, "different-salt", true},
		{"empty key", address, "", salt, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAccountKey(tt.address, tt.accountKey, tt.salt)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAccountKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != ErrInvalidAccountKey {
				t.Errorf("ValidateAccountKey() error = %v, want %v", err, ErrInvalidAccountKey)
			}
		})
	}
}

func TestDeriveAddress(t *testing.T) {
	salt := "derive-salt"

	tests := []struct {
		name string
		tag  string
		keys []string
	}{
		{"config, no keys", TagConfig, nil},
		{"day by index", TagAuctionDay, []string{"20330"}},
		{"vault by day address", TagVault, []string{"deadbeef"}},
		{"receipt by day and bidder", TagBidReceipt, []string{"deadbeef", "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := DeriveAddress(salt, tt.tag, tt.keys...)

			// 16 bytes hex encoded
			if len(addr) != 32 {
				t.Errorf("DeriveAddress() length = %d, want 32", len(addr))
			}

			// Should be deterministic
			addr2 := DeriveAddress(salt, tt.tag, tt.keys...)
			if addr != addr2 {
				t.Error("DeriveAddress() is not deterministic")
			}

			// A different salt must relocate the record
			other := DeriveAddress(salt+"x", tt.tag, tt.keys...)
			if addr == other {
				t.Error("DeriveAddress() ignored the salt")
			}
		})
	}

	// Different tags over the same keys must not collide
	day := DeriveAddress(salt, TagAuctionDay, "123")
	vault := DeriveAddress(salt, TagVault, "123")
	if day == vault {
		t.Error("DeriveAddress() collided across tags")
	}

	// Key boundaries matter: ("ab","c") and ("a","bc") are distinct
	addr1 := DeriveAddress(salt, TagBidReceipt, "ab", "c")
	addr2 := DeriveAddress(salt, TagBidReceipt, "a", "bc")
	if addr1 == addr2 {
		t.Error("DeriveAddress() collided across key boundaries")
	}
}

func TestValidateEscrowAuthority(t *testing.T) {
	salt := "escrow-salt"
	escrow := DeriveAddress(salt, TagVault, "someday")
	validAuthority := EscrowAuthority(salt, escrow)

	tests := []struct {
		name      string
		escrow    string
		authority string
		salt      string
		wantErr   bool
	}{
		{"valid authority", escrow, validAuthority, salt, false},
		{"wrong authority", escrow, "forged", salt, true},
		{"wrong escrow", "other-escrow", validAuthority, salt, true},
		{"wrong salt", escrow, validAuthority, "different-salt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEscrowAuthority(tt.escrow, tt.authority, tt.salt)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEscrowAuthority() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != ErrInvalidAuthority {
				t.Errorf("ValidateEscrowAuthority() error = %v, want %v", err, ErrInvalidAuthority)
			}
		})
	}
}

// Benchmark tests
func BenchmarkGenerateID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateID(16)
	}
}

func BenchmarkDeriveAddress(b *testing.B) {
	for i := 0; i < b.N; i++ {
		DeriveAddress("bench-salt", TagBidReceipt, "dayaddr", "bidder")
	}
}
