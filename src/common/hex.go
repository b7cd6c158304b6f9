package common

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// EncodeToString returns the UPPERCASE string representation of hexBytes with
// the 0X prefix
func EncodeToString(hexBytes []byte) string {
	return fmt.Sprintf("0X%X", hexBytes)
}

// DecodeFromString converts a hex string with an optional 0X prefix to a byte
// slice
func DecodeFromString(hexString string) ([]byte, error) {
	hexString = strings.TrimPrefix(strings.ToUpper(hexString), "0X")
	return hex.DecodeString(hexString)
}

// IsHexKey reports whether s uses the 0X prefixed hex notation.
func IsHexKey(s string) bool {
	return strings.HasPrefix(strings.ToUpper(s), "0X")
}

// DecodeKey decodes a 32 byte key from hex.
func DecodeKey(s string) ([32]byte, error) {
	var key [32]byte
	b, err := DecodeFromString(s)
	if err != nil {
		return key, errors.Wrap(err, "decoding key")
	}
	if len(b) != len(key) {
		return key, errors.Errorf("key is %d bytes, expected %d", len(b), len(key))
	}
	copy(key[:], b)
	return key, nil
}
