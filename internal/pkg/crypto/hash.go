package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashString returns the first 16 hex characters of s's SHA256 — short
// enough for log lines and file names, long enough that collisions within
// one account's resources are not a practical concern.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// HashJSON marshals v and returns HashString of the bytes. Determinism
// rests on the caller passing a canonically-ordered value: struct field
// order and sorted map keys are stable under encoding/json, anything else
// is the caller's problem.
func HashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return HashString(string(data)), nil
}
