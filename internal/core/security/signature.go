package security

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// VerificationResult says whether a callback's signature checks out.
type VerificationResult string

const (
	Verified                  VerificationResult = "VERIFIED"
	RejectedMissingSignature  VerificationResult = "MISSING_SIGNATURE"
	RejectedSignatureMismatch VerificationResult = "SIGNATURE_MISMATCH"
)

// Canonicalize rebuilds the exact byte string the gateway signed.
//
// The redirect does not guarantee field order, so we impose one: drop the
// signature field itself, sort the remaining names bytewise, URL-encode each
// value the way the gateway does (space becomes '+', reserved characters are
// percent-escaped), and join "name=value" pairs with '&'.
func Canonicalize(fields map[string]string, signatureField string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if name == signatureField {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[name]))
	}
	return b.String()
}

// Sign computes the hex HMAC-SHA512 of the canonical string.
// Used by the checkout path when building the redirect, and here to
// recompute what the gateway should have sent.
func Sign(canonical string, secret []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the digest and compares it to the supplied one.
//
// This is the only authenticity gate in the whole pipeline, so the compare is
// constant time (hmac.Equal); we never bail on the first differing byte.
// A signature that is not even valid hex counts as a mismatch, not an error.
func VerifySignature(canonical, supplied string, secret []byte) VerificationResult {
	if supplied == "" {
		return RejectedMissingSignature
	}

	suppliedBytes, err := hex.DecodeString(supplied)
	if err != nil {
		return RejectedSignatureMismatch
	}

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(canonical))
	expected := mac.Sum(nil)

	if !hmac.Equal(suppliedBytes, expected) {
		return RejectedSignatureMismatch
	}
	return Verified
}
