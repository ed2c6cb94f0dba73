// Package kdlcrypto implements the signing and hashing primitives used to
// authenticate statements: Keccak256 hashing and secp256k1 recoverable
// signatures, in the Ethereum-compatible shape the core's name derivation
// depends on.
package kdlcrypto

import "golang.org/x/crypto/sha3"

// HashLen is the length in bytes of a Keccak256 digest.
const HashLen = 32

// Hash is a 256-bit Keccak256 digest.
type Hash [HashLen]byte

// Keccak256 hashes data with the Ethereum-style (pre-standardization)
// Keccak256 permutation, not NIST SHA3-256.
func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 2+2*HashLen)
	buf[0], buf[1] = '0', 'x'
	for i, b := range h {
		buf[2+2*i] = hextable[b>>4]
		buf[3+2*i] = hextable[b&0x0f]
	}
	return string(buf)
}
