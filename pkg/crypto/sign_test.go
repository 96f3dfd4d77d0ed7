package crypto

import (
	"bytes"
	"testing"
)

func TestSigner_SignVerify(t *testing.T) {
	s, err := NewSigner()
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	msg := []byte("hello, mesh")
	sig := s.Sign(msg)
	if len(sig) != SignatureSize {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureSize)
	}

	if err := Verify(s.PublicKey(), msg, sig); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
	if err := Verify(s.PublicKey(), []byte("wrong message"), sig); err == nil {
		t.Error("signature over different message accepted")
	}

	sig[0] ^= 0x01
	if err := Verify(s.PublicKey(), msg, sig); err == nil {
		t.Error("corrupted signature accepted")
	}
}

func TestSignerFromSeed_Deterministic(t *testing.T) {
	seed := RandomBytes(32)

	a, err := SignerFromSeed(seed)
	if err != nil {
		t.Fatalf("SignerFromSeed: %v", err)
	}
	b, err := SignerFromSeed(seed)
	if err != nil {
		t.Fatalf("SignerFromSeed: %v", err)
	}

	if !bytes.Equal(a.PublicKey(), b.PublicKey()) {
		t.Error("same seed produced different key pairs")
	}

	msg := []byte("deterministic")
	if !bytes.Equal(a.Sign(msg), b.Sign(msg)) {
		t.Error("same seed produced different signatures")
	}
}

func TestSignerFromSeed_BadSeed(t *testing.T) {
	if _, err := SignerFromSeed(make([]byte, 16)); err == nil {
		t.Error("short seed accepted")
	}
}

func TestVerify_BadPublicKey(t *testing.T) {
	s, _ := NewSigner()
	sig := s.Sign([]byte("m"))
	if err := Verify(make([]byte, 5), []byte("m"), sig); err == nil {
		t.Error("malformed public key accepted")
	}
}
