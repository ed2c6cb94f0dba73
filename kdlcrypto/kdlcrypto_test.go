package kdlcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameDerivationIsDeterministicAndFits60Bits(t *testing.T) {
	var key [32]byte
	key[31] = 1
	a1 := FromPrivateKey(key)
	a2 := FromPrivateKey(key)
	require.Equal(t, a1.NameValue, a2.NameValue)
	require.Zero(t, a1.NameValue&^nameMask, "name must fit in 60 bits")
	require.NotZero(t, a1.NameValue)
}

// The known test key 0x...0001's derived address and name. The address is
// the full 120-bit value; the name is its low 60 bits (the low 15 hex
// digits of the address's 30-hex-digit form) — NameFromHash truncates, it
// does not re-derive a different quantity.
func TestNameDerivationMatchesKnownTestVector(t *testing.T) {
	var key [32]byte
	key[31] = 1
	acct := FromPrivateKey(key)

	addr := AddressFromHash(HashPublicKey(acct.PublicKey))
	require.Equal(t, "0x7e5f4552091a69125d5dfcb7b8c265", addr.String())
	require.Equal(t, uint64(0x25d5dfcb7b8c265), acct.NameValue)
}

func TestSignAndRecoverRoundTrip(t *testing.T) {
	var key [32]byte
	key[31] = 7
	acct := FromPrivateKey(key)

	hash := Keccak256([]byte("Hello, Kindelia!"))
	sig := acct.Sign(hash)

	name, err := sig.SignerName(hash)
	require.NoError(t, err)
	require.Equal(t, acct.NameValue, name)
}

func TestSignatureRejectsWrongHash(t *testing.T) {
	var key [32]byte
	key[31] = 7
	acct := FromPrivateKey(key)

	hash := Keccak256([]byte("Hello, Kindelia!"))
	other := Keccak256([]byte("Goodbye!"))
	sig := acct.Sign(hash)

	name, err := sig.SignerName(other)
	require.NoError(t, err) // recovery always succeeds, but yields the wrong key
	require.NotEqual(t, acct.NameValue, name)
}
