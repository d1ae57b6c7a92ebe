package utils

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

const randomCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSessionID generates a unique session ID.
func GenerateSessionID() string {
	return fmt.Sprintf("session_%s", uuid.New().String())
}

// GenerateClientID generates a client identifier for signaling. The
// value only has to be unlikely to collide within a channel, so a
// short random suffix beats a full UUID on the wire.
func GenerateClientID() string {
	return fmt.Sprintf("client_%s", RandomChars(16))
}

// RandomChars returns n random alphanumeric characters. Used for
// signaling identifiers that only need to be unlikely to collide.
func RandomChars(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	for i := range b {
		b[i] = randomCharset[int(b[i])%len(randomCharset)]
	}
	return string(b)
}
