package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"golang.org/x/crypto/chacha20poly1305"
)

// Key and nonce sizes shared by both AEAD suites.
const (
	KeySize   = 32
	NonceSize = 12
)

// Suite names an AEAD construction.
type Suite string

const (
	SuiteAESGCM   Suite = "aes-256-gcm"
	SuiteChaCha20 Suite = "chacha20-poly1305"
)

// Cipher is an authenticated cipher over mesh payloads. The on-wire
// ciphertext is nonce(12) || AEAD ciphertext with tag. Every Encrypt
// draws a fresh random nonce; the 12-byte nonce space is sufficient
// only because mesh keys are per-session and low-volume.
type Cipher struct {
	suite Suite
	aead  cipher.AEAD
}

// NewAESGCM creates an AES-256-GCM cipher from a 32-byte key.
func NewAESGCM(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, mesherr.Crypto("aes key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindCrypto, err, "create aes cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindCrypto, err, "create gcm")
	}
	return &Cipher{suite: SuiteAESGCM, aead: aead}, nil
}

// NewChaCha20 creates a ChaCha20-Poly1305 cipher from a 32-byte key.
func NewChaCha20(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindCrypto, err, "create chacha20-poly1305")
	}
	return &Cipher{suite: SuiteChaCha20, aead: aead}, nil
}

// NewCipher creates a cipher of the named suite.
func NewCipher(suite Suite, key []byte) (*Cipher, error) {
	switch suite {
	case SuiteAESGCM:
		return NewAESGCM(key)
	case SuiteChaCha20:
		return NewChaCha20(key)
	default:
		return nil, mesherr.Crypto("unknown cipher suite %q", suite)
	}
}

// Suite returns the cipher's suite name.
func (c *Cipher) Suite() Suite {
	return c.suite
}

// Encrypt seals plaintext with the given associated data.
func (c *Cipher) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, mesherr.Wrap(mesherr.KindCrypto, err, "generate nonce")
	}
	return c.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Decrypt opens a sealed payload. It fails with a crypto error when
// the input is shorter than a nonce or the tag does not verify.
func (c *Cipher) Decrypt(ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, mesherr.Crypto("ciphertext too short: %d bytes", len(ciphertext))
	}
	nonce, sealed := ciphertext[:NonceSize], ciphertext[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindCrypto, err, "%s decrypt", c.suite)
	}
	return plaintext, nil
}
