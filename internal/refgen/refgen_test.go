package refgen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionRefFormat(t *testing.T) {
	re := regexp.MustCompile(`^TXN[0-9A-F]{16}$`)
	for i := 0; i < 100; i++ {
		assert.Regexp(t, re, TransactionRef())
	}
}

func TestTrackingRefFormat(t *testing.T) {
	re := regexp.MustCompile(`^TRACK[0-9A-F]{12}$`)
	for i := 0; i < 100; i++ {
		assert.Regexp(t, re, TrackingRef())
	}
}

func TestRefsDoNotRepeat(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		ref := TransactionRef()
		_, dup := seen[ref]
		assert.False(t, dup, "duplicate reference %s", ref)
		seen[ref] = struct{}{}
	}
}
