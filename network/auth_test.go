package network

import (
	"testing"

	"github.com/stretchr/testify/require"

	"atlaschain/crypto"
)

func newTestAuthenticator(t *testing.T) *KeyAuthenticator {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return NewKeyAuthenticator(key)
}
