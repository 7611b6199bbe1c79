package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier with a type prefix, e.g. byr_…,
// prj_…, doc_…. An empty prefix yields the bare hex string.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
