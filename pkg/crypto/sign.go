package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
)

// SignatureSize is the length of a detached Ed25519 signature.
const SignatureSize = ed25519.SignatureSize

// Signer signs messages with an Ed25519 key pair.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner generates a fresh Ed25519 key pair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindCrypto, err, "generate ed25519 key")
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// SignerFromSeed builds a signer from a 32-byte seed, deterministically.
func SignerFromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, mesherr.Crypto("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// PublicKey returns the 32-byte public key.
func (s *Signer) PublicKey() []byte {
	return append([]byte(nil), s.pub...)
}

// Sign produces a 64-byte detached signature over the message.
func (s *Signer) Sign(message []byte) []byte {
	return ed25519.Sign(s.priv, message)
}

// Verify checks the signer's own signature over a message.
func (s *Signer) Verify(message, signature []byte) error {
	return Verify(s.pub, message, signature)
}

// Verify checks a detached Ed25519 signature.
func Verify(publicKey, message, signature []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return mesherr.Crypto("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey))
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), message, signature) {
		return mesherr.Crypto("ed25519 verification failed")
	}
	return nil
}
