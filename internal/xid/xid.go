// Package xid generates the prefixed ids stored records carry, such as
// cl-... for clients and fac-... for invoices.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns prefix-nanos-random. The random suffix keeps ids distinct
// across processes writing the same substrate; when the random source is
// unavailable the nanosecond timestamp alone still yields a usable id.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
