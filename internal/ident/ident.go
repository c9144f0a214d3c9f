// Package ident produces the chain-style identifiers the simulator stores in
// place of on-chain values: keccak-256 content hashes and 20-byte addresses.
package ident

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ZeroAddress is used as the collateral token when none is supplied.
var ZeroAddress = common.Address{}.Hex()

// DefaultQuestion is hashed when a market is created without question text.
const DefaultQuestion = "Demo question"

// Keccak returns the 0x-prefixed keccak-256 hash of s.
func Keccak(s string) string {
	return crypto.Keccak256Hash([]byte(s)).Hex()
}

// QuestionHash hashes the market question, falling back to DefaultQuestion.
func QuestionHash(question string) string {
	if question == "" {
		question = DefaultQuestion
	}
	return Keccak(question)
}

// OptionHash hashes an option label together with the market creation time
// and the option index, so repeated labels still get distinct hashes.
func OptionHash(label string, createdAt time.Time, index int) string {
	return Keccak(fmt.Sprintf("%s-%d-%d", label, createdAt.UnixMilli(), index))
}

// RandomAddress returns a random checksummed 20-byte address.
func RandomAddress() string {
	var b [common.AddressLength]byte
	if _, err := rand.Read(b[:]); err != nil {
		u := uuid.New()
		copy(b[:], u[:])
	}
	return common.BytesToAddress(b[:]).Hex()
}

// BidID returns a session-unique bid identifier: creation millis plus a
// random suffix.
func BidID(now time.Time) string {
	return fmt.Sprintf("bid-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
