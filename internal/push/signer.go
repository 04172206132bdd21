// Package push delivers notifications to devices through the push gateway.
package push

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// GenerateSignature returns the hex HMAC-SHA256 of "{timestamp}.{body}"
// keyed with the gateway secret. The gateway recomputes it from the
// HeaderTimestamp value and the raw body.
func GenerateSignature(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
