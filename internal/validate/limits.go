// Package validate rejects inputs the extraction core should never see:
// empty documents and documents above the configured size cap.
package validate

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxInputBytes caps a single document (2 MiB).
const DefaultMaxInputBytes = 2 << 20

var (
	ErrEmptyInput    = errors.New("the file is empty or could not be read")
	ErrInputTooLarge = errors.New("input exceeds maximum size")
)

// Text returns ErrEmptyInput for blank text and ErrInputTooLarge when
// maxBytes is positive and exceeded.
func Text(text string, maxBytes int) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	if maxBytes > 0 && len(text) > maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(text), maxBytes)
	}
	return nil
}

// Size checks a raw upload or file size before it is decoded.
func Size(n int64, maxBytes int) error {
	if n == 0 {
		return ErrEmptyInput
	}
	if maxBytes > 0 && n > int64(maxBytes) {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, n, maxBytes)
	}
	return nil
}
