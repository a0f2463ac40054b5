package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// AddressPrefix defines the different types of human-readable address prefixes.
type AddressPrefix string

const (
	// ExposedPrefix marks addresses that may appear in public ledger entries.
	ExposedPrefix AddressPrefix = "nbex"
	// HiddenPrefix marks addresses reserved for shielded profiles.
	HiddenPrefix AddressPrefix = "nbhd"
)

// Address represents a bech32m-encoded account address whose payload is a
// 32-byte Ed25519 public key.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != ed25519.PublicKeySize {
		return Address{}, fmt.Errorf("address payload must be %d bytes long, got %d", ed25519.PublicKeySize, len(b))
	}
	if prefix != ExposedPrefix && prefix != HiddenPrefix {
		return Address{}, fmt.Errorf("unknown address prefix %q", prefix)
	}
	cloned := append([]byte(nil), b...)
	return Address{prefix: prefix, bytes: cloned}, nil
}

// MustNewAddress constructs an address and panics if the input is invalid.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.EncodeM(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes...)
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// DecodeAddress parses a bech32m address string back into its payload form.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, version, err := bech32.DecodeGeneric(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if version != bech32.VersionM {
		return Address{}, fmt.Errorf("address %q is not bech32m encoded", addrStr)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	addr, err := NewAddress(AddressPrefix(prefix), conv)
	if err != nil {
		return Address{}, err
	}
	return addr, nil
}

// AddressFromPubKey derives the canonical address for a raw Ed25519 public key.
func AddressFromPubKey(pk []byte, prefix AddressPrefix) (Address, error) {
	return NewAddress(prefix, pk)
}

// PublicKeyFromString recovers the Ed25519 public key embedded in an address
// string.
func PublicKeyFromString(s string) (*PublicKey, error) {
	addr, err := DecodeAddress(s)
	if err != nil {
		return nil, err
	}
	return &PublicKey{key: addr.Bytes()}, nil
}

// --- Key Management ---

type PrivateKey struct {
	key ed25519.PrivateKey
}

type PublicKey struct {
	key ed25519.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// Bytes returns the 32-byte seed representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return append([]byte(nil), k.key.Seed()...)
}

func (k *PrivateKey) PubKey() *PublicKey {
	pub := k.key.Public().(ed25519.PublicKey)
	return &PublicKey{key: append(ed25519.PublicKey(nil), pub...)}
}

// Sign produces a 64-byte Ed25519 signature over the message.
func (k *PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(k.key, message)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key seed must be %d bytes long, got %d", ed25519.SeedSize, len(b))
	}
	return &PrivateKey{key: ed25519.NewKeyFromSeed(b)}, nil
}

func (k *PublicKey) Bytes() []byte {
	return append([]byte(nil), k.key...)
}

func (k *PublicKey) Address() Address {
	return MustNewAddress(ExposedPrefix, k.key)
}

// Verify reports whether sig is a valid signature of message under this key.
func (k *PublicKey) Verify(message, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(k.key, message, sig)
}

// VerifyBytes verifies a signature against a raw 32-byte public key.
func VerifyBytes(pk, message, sig []byte) bool {
	if len(pk) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pk), message, sig)
}
