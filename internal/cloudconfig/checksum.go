package cloudconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Checksum returns the canonical digest of a settings map: sha256 over the
// keys in lexical order, one "key=value\n" line each.
func Checksum(settings map[string]string) string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(settings[k]))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
