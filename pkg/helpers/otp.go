package helpers

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

var otpMax = big.NewInt(1_000_000)

// GenOTPCode generates a secure random 6-digit code as a zero-padded string
func GenOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GenToken returns n random bytes encoded for use in URLs and cookies.
func GenToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
