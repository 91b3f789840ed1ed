// Package sessiontag issues identifiers for client sessions. Tags are
// UUIDv7 values encoded as 26-character Crockford base32 strings, so
// they sort by creation time and paste cleanly into log searches.
package sessiontag

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// Crockford's base32 alphabet, lowercased.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// RandSource supplies the random tail of a tag. Tests inject a
// deterministic source; production uses crypto/rand.
type RandSource interface {
	Intn(n int) int
}

// Generator issues session tags.
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator. A nil randSource selects crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate issues a tag from a crypto/rand backed generator.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate issues a new session tag.
func (g *Generator) Generate() string {
	return encodeBase32(g.newUUIDv7())
}

// newUUIDv7 builds a UUIDv7: a 48-bit millisecond timestamp followed by
// random bits, with the version and variant fields set per RFC 9562.
func (g *Generator) newUUIDv7() [16]byte {
	var uuid [16]byte

	now := time.Now().UnixMilli()
	uuid[0] = byte(now >> 40)
	uuid[1] = byte(now >> 32)
	uuid[2] = byte(now >> 24)
	uuid[3] = byte(now >> 16)
	uuid[4] = byte(now >> 8)
	uuid[5] = byte(now)

	if g.randSource != nil {
		for i := 6; i < 16; i++ {
			uuid[i] = byte(g.randSource.Intn(256))
		}
	} else {
		if _, err := rand.Read(uuid[6:]); err != nil {
			panic("failed to generate random bytes: " + err.Error())
		}
	}

	uuid[6] = (uuid[6] & 0x0f) | 0x70 // version 7
	uuid[8] = (uuid[8] & 0x3f) | 0x80 // variant 10

	return uuid
}

// encodeBase32 packs 128 bits into 26 characters, five bits at a time,
// padding the trailing 3 bits with zeros.
func encodeBase32(data [16]byte) string {
	out := make([]byte, 0, 26)
	var acc uint32
	bits := 0
	for _, b := range data {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			out = append(out, alphabet[(acc>>uint(bits-5))&0x1f])
			bits -= 5
		}
	}
	if bits > 0 {
		out = append(out, alphabet[(acc<<uint(5-bits))&0x1f])
	}
	return string(out)
}

// Validate checks that id has the shape of a generated tag.
func Validate(id string) error {
	if len(id) != 26 {
		return fmt.Errorf("session tag must be exactly 26 characters, got %d", len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("session tag first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
