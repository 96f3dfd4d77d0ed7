package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

func TestGenerateMnemonic(t *testing.T) {
	m, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic: %v", err)
	}
	if words := len(strings.Fields(m)); words != 24 {
		t.Errorf("mnemonic has %d words, want 24", words)
	}
	if !ValidateMnemonic(m) {
		t.Error("generated mnemonic fails validation")
	}
}

func TestMasterKeyFromMnemonic(t *testing.T) {
	m, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic: %v", err)
	}

	k1, err := MasterKeyFromMnemonic(m, "")
	if err != nil {
		t.Fatalf("MasterKeyFromMnemonic: %v", err)
	}
	if len(k1) != KeySize {
		t.Fatalf("master key length = %d, want %d", len(k1), KeySize)
	}

	// Recovery: same mnemonic, same key.
	k2, _ := MasterKeyFromMnemonic(m, "")
	if !bytes.Equal(k1, k2) {
		t.Error("same mnemonic produced different master keys")
	}

	// The passphrase changes the key.
	k3, _ := MasterKeyFromMnemonic(m, "hunter2")
	if bytes.Equal(k1, k3) {
		t.Error("passphrase ignored in derivation")
	}

	if _, err := MasterKeyFromMnemonic("not a mnemonic at all", ""); err == nil {
		t.Error("invalid mnemonic accepted")
	}
}

func TestNodeKeysFromMnemonic(t *testing.T) {
	m, _ := GenerateMnemonic()
	id := types.NewNodeID()

	master, enc, auth, err := NodeKeysFromMnemonic(m, "", id)
	if err != nil {
		t.Fatalf("NodeKeysFromMnemonic: %v", err)
	}

	wantEnc, wantAuth, _ := DeriveMeshKeys(master, id)
	if !bytes.Equal(enc, wantEnc) || !bytes.Equal(auth, wantAuth) {
		t.Error("node keys do not match DeriveMeshKeys over the master key")
	}
}
