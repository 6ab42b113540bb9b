package services

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	orderNumberAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	orderNumberSuffixLen = 6
)

// generateOrderNumber builds a human legible order number of the form
// ORD-YYYYMMDD-XXXXXX where the suffix is a random alphanumeric string.
// The date portion always uses UTC.
func generateOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, orderNumberSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("order number entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), buf), nil
}
