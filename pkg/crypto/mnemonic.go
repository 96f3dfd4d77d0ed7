package crypto

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
	"github.com/tyler-smith/go-bip39"
)

// MnemonicEntropyBits is the entropy size for 24-word mnemonics.
const MnemonicEntropyBits = 256

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic. Operators
// use it as a recoverable form of the mesh master key.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic checks if a mnemonic is valid per BIP-39
// (correct word count, valid words, valid checksum).
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// MasterKeyFromMnemonic derives the 32-byte mesh master key from a
// mnemonic and optional passphrase: the BIP-39 seed is the HKDF input
// keying material, with a fixed mesh context.
func MasterKeyFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}
	return HkdfSha256(seed, nil, []byte("mesh-master-key"), KeySize)
}

// NodeKeysFromMnemonic derives a node's master key and the mesh keys
// for its id in one step.
func NodeKeysFromMnemonic(mnemonic, passphrase string, nodeID types.NodeID) (master, encKey, authKey []byte, err error) {
	master, err = MasterKeyFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, nil, nil, err
	}
	encKey, authKey, err = DeriveMeshKeys(master, nodeID)
	if err != nil {
		return nil, nil, nil, err
	}
	return master, encKey, authKey, nil
}
