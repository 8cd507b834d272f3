// Package fingerprint derives a pseudo-unique device identifier from
// client-reported signals. The result is a correlation key only: it is
// neither collision-free nor an authentication factor, and nothing in the
// session core may treat it as one.
package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// ID is a device correlation key, distinct from any credential type.
type ID string

func (id ID) String() string { return string(id) }

const idLength = 16

// Generate derives a device ID from the user agent, platform string and a
// coarse timestamp. The timestamp is bucketed to the minute so repeated
// logins from the same client within the bucket produce the same ID.
func Generate(userAgent, platform string, now time.Time) ID {
	bucket := now.UTC().Truncate(time.Minute).Unix()
	raw := fmt.Sprintf("%s-%s-%d", userAgent, platform, bucket)

	// Hash before encoding: truncating base64 of the raw string would keep
	// only its first bytes, and user agents share a long common prefix.
	sum := sha256.Sum256([]byte(raw))
	encoded := base64.StdEncoding.EncodeToString(sum[:])
	var b strings.Builder
	for _, r := range encoded {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == idLength {
				break
			}
		}
	}
	return ID(b.String())
}

// BrowserFamily extracts a coarse browser family from a user agent string.
// Informational only, never used for admission or validation decisions.
func BrowserFamily(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Edg"):
		return "Edge"
	case strings.Contains(userAgent, "Chrome"):
		return "Chrome"
	case strings.Contains(userAgent, "Firefox"):
		return "Firefox"
	case strings.Contains(userAgent, "Safari"):
		return "Safari"
	default:
		return "Unknown"
	}
}
