package kdlcrypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v3"
)

// AddressLen is the length in bytes of the Ethereum-style address an
// account's name is derived from: 120 bits, bytes 12..27 of the public
// key's Keccak256 hash.
const AddressLen = 15

// Address is the full 120-bit value NameFromHash truncates down to a
// 60-bit Name. It is not itself a chain.Name — nothing in the core stores
// or compares Address values — but it is exposed because it is the
// quantity every outside verifier (and the corresponding Rust
// Name::from_hash) actually computes before any truncation happens, and a
// caller validating a derivation against that reference needs to see it
// untruncated.
type Address [AddressLen]byte

func (a Address) Bytes() []byte { return a[:] }

func (a Address) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 2+2*AddressLen)
	buf[0], buf[1] = '0', 'x'
	for i, b := range a {
		buf[2+2*i] = hextable[b>>4]
		buf[3+2*i] = hextable[b&0x0f]
	}
	return string(buf)
}

// Account bundles a secp256k1 keypair with the 60-bit name derived from it.
// The name is the low 60 bits of the account's 120-bit Ethereum-style
// Address, itself bytes 12..27 of keccak256(uncompressed pubkey).
type Account struct {
	PrivateKey *secp256k1.PrivateKey
	PublicKey  *secp256k1.PublicKey
	NameValue  uint64
}

// FromPrivateKey builds an Account from a 32-byte secret key.
func FromPrivateKey(key [32]byte) *Account {
	priv := secp256k1.PrivKeyFromBytes(key[:])
	return fromPrivateKey(priv)
}

func fromPrivateKey(priv *secp256k1.PrivateKey) *Account {
	pub := priv.PubKey()
	return &Account{
		PrivateKey: priv,
		PublicKey:  pub,
		NameValue:  NameFromPublicKey(pub),
	}
}

// HashPublicKey returns keccak256 of the 64 uncompressed coordinate bytes
// of a public key (i.e. the serialized key minus its 0x04 prefix byte).
func HashPublicKey(pub *secp256k1.PublicKey) Hash {
	ser := pub.SerializeUncompressed()
	return Keccak256(ser[1:])
}

// NameFromPublicKey derives the 60-bit name channel value for a public key:
// the low 60 bits of AddressFromHash's 120-bit Ethereum-style address.
func NameFromPublicKey(pub *secp256k1.PublicKey) uint64 {
	return NameFromHash(HashPublicKey(pub))
}

// AddressFromHash extracts the 120-bit Ethereum-style address from a
// public-key hash: bytes 12..27 of the hash, big-endian.
func AddressFromHash(hash Hash) Address {
	var addr Address
	copy(addr[:], hash[12:12+AddressLen])
	return addr
}

// NameFromHash derives the 60-bit name from a pre-computed public-key hash:
// the low 60 bits of AddressFromHash(hash), i.e. the low 7 bytes plus the
// low nibble of the 8th-from-last byte of the address.
func NameFromHash(hash Hash) uint64 {
	addr := AddressFromHash(hash)
	var v uint64
	for _, b := range addr[8:] { // low 7 bytes (56 bits)
		v = v<<8 | uint64(b)
	}
	v |= uint64(addr[7]&0x0f) << 56 // plus low nibble of the 8th-from-end byte
	return v & nameMask
}

const nameMask = (uint64(1) << 60) - 1
