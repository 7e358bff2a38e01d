package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateOrderNumber builds a customer-facing order number:
// <prefix><yy><mm><4 random digits>, e.g. HT25094821.
func GenerateOrderNumber(prefix string, now time.Time) (string, error) {
	if prefix == "" {
		prefix = "HT"
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return fmt.Sprintf("%s%s%04d", prefix, now.Format("0601"), n.Int64()), nil
}
