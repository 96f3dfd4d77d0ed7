package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
	"golang.org/x/crypto/hkdf"
)

// HkdfSha256 derives outLen bytes from the input keying material.
// Identical inputs always yield identical output.
func HkdfSha256(ikm, salt, info []byte, outLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, mesherr.Wrap(mesherr.KindCrypto, err, "hkdf expand")
	}
	return out, nil
}

// DeriveMeshKeys derives the per-node encryption and authentication
// keys from a master key. The info strings are part of the wire
// contract for cross-implementation key agreement.
func DeriveMeshKeys(masterKey []byte, nodeID types.NodeID) (encKey, authKey []byte, err error) {
	hexID := nodeID.String()
	encKey, err = HkdfSha256(masterKey, nil, []byte("mesh-encryption:"+hexID), KeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("derive encryption key: %w", err)
	}
	authKey, err = HkdfSha256(masterKey, nil, []byte("mesh-auth:"+hexID), KeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("derive auth key: %w", err)
	}
	return encKey, authKey, nil
}

// DeriveSessionKeys derives the directional session keys for a peer
// pair from a shared secret. The info strings are part of the wire
// contract.
func DeriveSessionKeys(sharedSecret []byte, peer1, peer2 types.NodeID) (k1, k2 []byte, err error) {
	suffix := peer1.String() + ":" + peer2.String()
	k1, err = HkdfSha256(sharedSecret, nil, []byte("session-key-1:"+suffix), KeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("derive session key 1: %w", err)
	}
	k2, err = HkdfSha256(sharedSecret, nil, []byte("session-key-2:"+suffix), KeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("derive session key 2: %w", err)
	}
	return k1, k2, nil
}
