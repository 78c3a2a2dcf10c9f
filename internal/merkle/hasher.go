package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

const (
	// DigestLength is the number of hex characters in a content or tree digest.
	DigestLength = sha256.Size * 2

	hashBlockSize = 8192
)

// HashReader computes the hex sha256 digest of everything read from r.
// The content is streamed in fixed size blocks.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, hashBlockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes computes the hex sha256 digest of data.
func HashBytes(data []byte) string {
	digest, _ := HashReader(bytes.NewReader(data))
	return digest
}
