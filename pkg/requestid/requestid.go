package requestid

import (
	crand "crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

const DefaultHeaderKey = "X-Request-Id"

const prefix = "x12-"

// ResolveHeaderKey returns headerKey when non-empty, otherwise the default.
func ResolveHeaderKey(headerKey string) string {
	if v := strings.TrimSpace(headerKey); v != "" {
		return v
	}
	return DefaultHeaderKey
}

// Gen returns an id of the form x12-<yyyymmddHHMMSS>-<12 hex chars>.
func Gen() string {
	return prefix + time.Now().UTC().Format("20060102150405") + "-" + randomHex(6)
}

func randomHex(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		// best effort fallback
		return strings.Repeat("0", 2*n)
	}
	return hex.EncodeToString(b)
}
