package randutil

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

func RandomString(length int) (string, error) {
	key := make([]byte, length)

	if _, err := rand.Read(key); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(key), nil
}

// MaskString keeps visibleStart leading and visibleEnd trailing characters
// and stars out the rest. Short inputs are fully masked.
func MaskString(apiKey string, visibleStart, visibleEnd int) string {
	if len(apiKey) <= visibleStart+visibleEnd {
		return strings.Repeat("*", len(apiKey))
	}

	start := apiKey[:visibleStart]
	end := apiKey[len(apiKey)-visibleEnd:]
	return start + strings.Repeat("*", len(apiKey)-(visibleStart+visibleEnd)) + end
}
