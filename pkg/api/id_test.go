package api

import (
	"strings"
	"testing"
)

func TestNewIDs(t *testing.T) {
	tests := []struct {
		name     string
		gen      func() string
		valid    func(string) bool
		prefix   string
		crossVal func(string) bool
	}{
		{"exchange", NewExchangeID, ValidateExchangeID, ExchangeIDPrefix, ValidateRelayID},
		{"relay", NewRelayID, ValidateRelayID, RelayIDPrefix, ValidateExchangeID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.gen()
			if !strings.HasPrefix(id, tt.prefix) || !tt.valid(id) {
				t.Errorf("generated ID %q is not valid", id)
			}
			if tt.crossVal(id) {
				t.Errorf("ID %q validates with the other prefix", id)
			}
		})
	}
}

func TestValidateRelayID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "rly_0123456789abcdef0123456789abcdef", true},
		{"uppercase hex", "rly_0123456789ABCDEF0123456789ABCDEF", false},
		{"wrong prefix", "xchg_0123456789abcdef0123456789abcdef", false},
		{"too short", "rly_0123", false},
		{"too long", "rly_0123456789abcdef0123456789abcdef0", false},
		{"dashed uuid", "rly_01234567-89ab-cdef-0123-456789abcdef", false},
		{"path traversal", "rly_../../../../etc/passwd", false},
		{"prefix only", "rly_", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRelayID(tt.id); got != tt.want {
				t.Errorf("ValidateRelayID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := NewExchangeID()
		if seen[id] {
			t.Fatalf("duplicate exchange ID %q", id)
		}
		seen[id] = true
	}
}
