package pgcatalog

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// PeerTube derives its public short id from the uuid in the flickr base58
// alphabet, left-padded to a fixed width.
const (
	base58Alphabet = "123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	shortUUIDLen   = 22
)

var base58 = big.NewInt(58)

// ShortFromUUID encodes u the way PeerTube renders shortUUID.
func ShortFromUUID(u uuid.UUID) string {
	n := new(big.Int).SetBytes(u[:])
	var out []byte
	mod := new(big.Int)
	for n.Sign() > 0 {
		n.DivMod(n, base58, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	for len(out) < shortUUIDLen {
		out = append(out, base58Alphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// UUIDFromShort reverses ShortFromUUID. ok is false for strings outside
// the alphabet or values wider than 128 bits.
func UUIDFromShort(s string) (uuid.UUID, bool) {
	if s == "" || len(s) > shortUUIDLen {
		return uuid.UUID{}, false
	}
	n := new(big.Int)
	for _, r := range s {
		d := strings.IndexRune(base58Alphabet, r)
		if d < 0 {
			return uuid.UUID{}, false
		}
		n.Mul(n, base58)
		n.Add(n, big.NewInt(int64(d)))
	}
	if n.BitLen() > 128 {
		return uuid.UUID{}, false
	}
	var u uuid.UUID
	n.FillBytes(u[:])
	return u, true
}
