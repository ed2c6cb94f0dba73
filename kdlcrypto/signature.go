package kdlcrypto

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/decred/dcrd/dcrec/secp256k1/v3/ecdsa"
)

// SignatureLen is the length in bytes of a compact recoverable signature:
// one recovery-id byte followed by the 64-byte (R, S) pair.
const SignatureLen = 65

var ErrBadSignature = errors.New("kdlcrypto: malformed or unrecoverable signature")

// Signature is a secp256k1 recoverable signature in compact form.
type Signature [SignatureLen]byte

// Sign produces a recoverable signature over hash using the account's key.
func (a *Account) Sign(hash Hash) Signature {
	compact := ecdsa.SignCompact(a.PrivateKey, hash[:], false)
	var sig Signature
	// ecdsa.SignCompact returns [recovery+27][R][S]; the wire format here
	// keeps the raw recovery id in the leading byte.
	sig[0] = compact[0] - 27
	copy(sig[1:], compact[1:])
	return sig
}

// SignerPublicKey recovers the public key that produced sig over hash.
func (s Signature) SignerPublicKey(hash Hash) (*secp256k1.PublicKey, error) {
	compact := make([]byte, SignatureLen)
	compact[0] = s[0] + 27
	copy(compact[1:], s[1:])
	pub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return nil, ErrBadSignature
	}
	return pub, nil
}

// SignerName recovers the 60-bit name of the account that produced sig.
func (s Signature) SignerName(hash Hash) (uint64, error) {
	pub, err := s.SignerPublicKey(hash)
	if err != nil {
		return 0, err
	}
	return NameFromPublicKey(pub), nil
}

func (s Signature) Bytes() []byte { return s[:] }

func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureLen {
		return sig, ErrBadSignature
	}
	copy(sig[:], b)
	return sig, nil
}
