package ids

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// Generator produces identifiers and opaque tokens; mocked in tests
type Generator interface {
	// NewID returns a fresh UUID v4 string
	NewID() string

	// Token returns an unguessable URL-safe token with the given prefix
	Token(prefix string) string
}

// UUIDGenerator implements Generator using google/uuid and crypto/rand
type UUIDGenerator struct{}

// New creates a new UUIDGenerator
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a random UUID v4
func (g *UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// Token returns prefix followed by 16 random bytes, base64url encoded
func (g *UUIDGenerator) Token(prefix string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}
