package model

import (
	"regexp"

	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string for use as an entity identifier.
func NewID() string {
	return ulid.Make().String()
}

var assetKeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidKey reports whether s can be used as an asset or device config key.
// Keys double as file names, so separators and leading dots are refused.
func ValidKey(s string) bool {
	return assetKeyPattern.MatchString(s)
}
