package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// PersonalNumberFingerprint returns a short, stable digest of a personal
// number for logs and audit metadata.
func PersonalNumberFingerprint(personalNumber string) string {
	if personalNumber == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(personalNumber))
	return hex.EncodeToString(sum[:8])
}
