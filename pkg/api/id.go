package api

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ID prefixes. The rest of an ID is a random UUID in 32 lowercase hex
// digits.
const (
	ExchangeIDPrefix = "xchg_"
	RelayIDPrefix    = "rly_"
)

var idSuffix = regexp.MustCompile(`^[0-9a-f]{32}$`)

// NewExchangeID returns a new ID for one chat exchange, used to correlate
// client-side log lines and metrics.
func NewExchangeID() string {
	return newID(ExchangeIDPrefix)
}

// NewRelayID returns a new ID for one relayed request. It is the handle
// accepted by DELETE {prefix}/relays/{id}.
func NewRelayID() string {
	return newID(RelayIDPrefix)
}

// ValidateExchangeID reports whether id was produced by NewExchangeID.
func ValidateExchangeID(id string) bool {
	return validID(id, ExchangeIDPrefix)
}

// ValidateRelayID reports whether id was produced by NewRelayID.
func ValidateRelayID(id string) bool {
	return validID(id, RelayIDPrefix)
}

func newID(prefix string) string {
	u := uuid.New()
	return prefix + hex.EncodeToString(u[:])
}

func validID(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix)
	return ok && idSuffix.MatchString(rest)
}
