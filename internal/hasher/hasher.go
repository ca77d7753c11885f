package hasher

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/spaolacci/murmur3"
)

// Size is the digest width in bytes
const Size = 16

// Key is a 128-bit digest of request-identifying content
type Key [Size]byte

// Sum returns the MurmurHash3 x64 128-bit digest of data
func Sum(data []byte) Key {
	h1, h2 := murmur3.Sum128(data)

	var k Key
	binary.LittleEndian.PutUint64(k[:8], h1)
	binary.LittleEndian.PutUint64(k[8:], h2)
	return k
}

// SumString is Sum over the UTF-8 bytes of s
func SumString(s string) Key {
	return Sum([]byte(s))
}

// String returns the fixed-width lowercase hex form of the key
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}
