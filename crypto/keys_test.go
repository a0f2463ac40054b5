package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr := key.PubKey().Address()
	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, "nbex1"))

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr.Bytes(), decoded.Bytes())
	require.Equal(t, ExposedPrefix, decoded.Prefix())
}

func TestAddressRejectsWrongPayloadLength(t *testing.T) {
	_, err := NewAddress(ExposedPrefix, make([]byte, 20))
	require.Error(t, err)
}

func TestAddressRejectsUnknownPrefix(t *testing.T) {
	_, err := NewAddress(AddressPrefix("atlas"), make([]byte, 32))
	require.Error(t, err)
}

func TestHiddenPrefix(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	hidden, err := AddressFromPubKey(key.PubKey().Bytes(), HiddenPrefix)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hidden.String(), "nbhd1"))

	decoded, err := DecodeAddress(hidden.String())
	require.NoError(t, err)
	require.Equal(t, HiddenPrefix, decoded.Prefix())
}

func TestPublicKeyFromString(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	recovered, err := PublicKeyFromString(key.PubKey().Address().String())
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Bytes(), recovered.Bytes())
}

func TestPrivateKeySeedRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Bytes(), restored.PubKey().Bytes())
}

func TestSignVerify(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	msg := []byte("canonical message")
	sig := key.Sign(msg)
	require.Len(t, sig, 64)
	require.True(t, key.PubKey().Verify(msg, sig))
	require.False(t, key.PubKey().Verify([]byte("other message"), sig))
	require.True(t, VerifyBytes(key.PubKey().Bytes(), msg, sig))
}
