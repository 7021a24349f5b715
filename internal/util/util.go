package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// MarshalJSON wraps Sonic for performance
func MarshalJSON(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// UnmarshalJSON wraps Sonic for performance
func UnmarshalJSON(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// GenerateRandomID generates a prefixed random ID (crypto-secure)
func GenerateRandomID(prefix string) string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s%s", prefix, hex.EncodeToString(b))
}

// NewRequestID returns a UUID used to correlate a request with server-side logs.
func NewRequestID() string {
	return uuid.NewString()
}

// TruncateString truncates string and adds replacement text in the middle.
// Lengths are in bytes; cuts move inward to the nearest rune boundary.
func TruncateString(s string, prefixLen, suffixLen int, replacement string) string {
	if len(s) <= prefixLen+suffixLen {
		return s
	}
	end := prefixLen
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	start := len(s) - suffixLen
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[:end] + replacement + s[start:]
}

// MaskSecret keeps only the edges of a credential for logging.
func MaskSecret(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	if len(secret) <= 8 {
		return "****"
	}
	return TruncateString(secret, 3, 4, "...")
}

// GetEnvWithDefault gets env var with default value
func GetEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// LookupEnvInt parses an integer env var. ok is false when the variable is unset.
func LookupEnvInt(key string) (value int, ok bool, err error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	value, err = strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// LookupEnvFloat parses a float env var. ok is false when the variable is unset.
func LookupEnvFloat(key string) (value float64, ok bool, err error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	value, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// LookupEnvDuration parses a duration env var. Bare integers are read as seconds.
func LookupEnvDuration(key string) (value time.Duration, ok bool, err error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	if secs, convErr := strconv.Atoi(raw); convErr == nil {
		return time.Duration(secs) * time.Second, true, nil
	}
	value, err = time.ParseDuration(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}
