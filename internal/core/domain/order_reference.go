package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OrderReferenceKind tags coin-purchase tokens. Anything else is rejected.
const OrderReferenceKind = "COIN"

// ErrMalformedOrderReference means the token failed the grammar check.
// We never hand back a half-parsed reference: it is all or nothing.
var ErrMalformedOrderReference = errors.New("malformed order reference")

// OrderReference is the token we minted at checkout time and the gateway
// echoes back to us: COIN_{beneficiaryId}_{creditAmount}_{issuedAtEpoch}
type OrderReference struct {
	BeneficiaryID int64
	CreditAmount  int64
	IssuedAt      time.Time
}

// Encode builds the wire token. Decode(Encode(ref)) must round-trip.
func (r OrderReference) Encode() string {
	return fmt.Sprintf("%s_%d_%d_%d", OrderReferenceKind, r.BeneficiaryID, r.CreditAmount, r.IssuedAt.Unix())
}

// ParseOrderReference validates and decodes the token from a callback.
//
// The grammar is strict: exactly 4 segments separated by "_", the literal
// COIN tag, a positive beneficiary id, a credit amount between 1 and
// maxCredit, and an integer issue timestamp (kept for audit only).
func ParseOrderReference(raw string, maxCredit int64) (OrderReference, error) {
	parts := strings.Split(raw, "_")
	if len(parts) != 4 {
		return OrderReference{}, ErrMalformedOrderReference
	}

	if parts[0] != OrderReferenceKind {
		return OrderReference{}, ErrMalformedOrderReference
	}

	beneficiaryID, err := parsePositiveInt(parts[1])
	if err != nil {
		return OrderReference{}, ErrMalformedOrderReference
	}

	amount, err := parsePositiveInt(parts[2])
	if err != nil || amount > maxCredit {
		return OrderReference{}, ErrMalformedOrderReference
	}

	// The timestamp is not a trust input, but a token with a broken
	// timestamp is still a broken token.
	issuedAt, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return OrderReference{}, ErrMalformedOrderReference
	}

	return OrderReference{
		BeneficiaryID: beneficiaryID,
		CreditAmount:  amount,
		IssuedAt:      time.Unix(issuedAt, 0),
	}, nil
}

// parsePositiveInt rejects anything strconv would wave through that our
// grammar does not allow (signs, spaces, empty strings).
func parsePositiveInt(s string) (int64, error) {
	if s == "" {
		return 0, ErrMalformedOrderReference
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrMalformedOrderReference
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrMalformedOrderReference
	}
	if n < 1 {
		return 0, ErrMalformedOrderReference
	}
	return n, nil
}
