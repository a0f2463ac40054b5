package network

import (
	"atlaschain/crypto"
)

// KeyAuthenticator implements Authenticator over a node's Ed25519 key pair.
type KeyAuthenticator struct {
	key *crypto.PrivateKey
}

func NewKeyAuthenticator(key *crypto.PrivateKey) *KeyAuthenticator {
	return &KeyAuthenticator{key: key}
}

func (a *KeyAuthenticator) Sign(message []byte) []byte {
	return a.key.Sign(message)
}

func (a *KeyAuthenticator) Verify(message, signature, publicKey []byte) bool {
	return crypto.VerifyBytes(publicKey, message, signature)
}

func (a *KeyAuthenticator) PublicKey() []byte {
	return a.key.PubKey().Bytes()
}
