package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// DownloadTokenBytes is the entropy of a download token. 32 bytes gives a
// 64-character hex string.
const DownloadTokenBytes = 32

// GenerateDownloadToken returns a hex-encoded random bearer token.
func GenerateDownloadToken() (string, error) {
	buf := make([]byte, DownloadTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
