// Package uuid generates and validates the canonical identifiers used as
// primary keys. Every entity key is a lowercase UUIDv7 string.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New generates a new time-ordered UUIDv7 suitable for use as a primary key.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Fallback to a random UUIDv4 if the clock sequence cannot be read.
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates a UUID string and returns its canonical lowercase form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
