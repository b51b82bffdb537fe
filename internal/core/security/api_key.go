package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// GenerateAPIKey creates a secure random admin API key and its SHA256 hash.
//
// Returns:
//   - realKey: The actual key to show the operator (e.g., "cp_live_abc123...")
//   - keyHash: SHA256 hash to store in the database
//   - error: Any error during random byte generation
func GenerateAPIKey() (string, string, error) {
	// 1. Generate 32 random bytes using crypto/rand (cryptographically secure)
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// 2. Convert to hexadecimal string (64 characters)
	randomString := hex.EncodeToString(bytes)

	// 3. Add prefix (similar to Stripe's API key format)
	realKey := fmt.Sprintf("cp_live_%s", randomString)

	// 4. Hash the key with SHA256 - this is what we store in the database
	hash := sha256.Sum256([]byte(realKey))
	keyHash := hex.EncodeToString(hash[:])

	return realKey, keyHash, nil
}

// ValidateKey checks if a provided API key matches the stored hash.
// Constant-time compare, same as the signature path.
func ValidateKey(providedKey, storedHash string) bool {
	hash := sha256.Sum256([]byte(providedKey))
	computedHash := hex.EncodeToString(hash[:])

	return subtle.ConstantTimeCompare([]byte(computedHash), []byte(storedHash)) == 1
}
