// Package refgen produces the opaque references exposed to customers for
// payments and shipments. References are a fixed prefix plus uppercase hex
// from crypto/rand; uniqueness is enforced by the store, and callers retry
// generation on insert collision.
package refgen

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const (
	transactionPrefix = "TXN"
	trackingPrefix    = "TRACK"
)

func randomHex(nBytes int) string {
	buf := make([]byte, nBytes)
	// rand.Read on supported platforms never fails; it panics internally
	// if the kernel entropy source is broken.
	_, _ = rand.Read(buf)
	return strings.ToUpper(hex.EncodeToString(buf))
}

// TransactionRef returns a payment reference like "TXN3F2A9C0D4E1B8765".
func TransactionRef() string {
	return transactionPrefix + randomHex(8)
}

// TrackingRef returns a shipment reference like "TRACK9A0B1C2D3E4F".
func TrackingRef() string {
	return trackingPrefix + randomHex(6)
}
