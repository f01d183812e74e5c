package chain

import (
	"errors"
	"strings"
	"testing"
)

func TestFindProgramAddressIsOffCurveAndReproducible(t *testing.T) {
	program := MustPublicKey("9VXvA2BFsiLeThX4r3DUhWFmRcaNUKrtfGbsCSCBMu6z")
	seeds := [][]byte{[]byte("round"), {7, 0, 0, 0, 0, 0, 0, 0}}

	addr, bump, err := FindProgramAddress(seeds, program)
	if err != nil {
		t.Fatalf("FindProgramAddress() error = %v", err)
	}
	if isOnCurve(addr[:]) {
		t.Fatalf("derived address %s is on curve", addr)
	}
	again, err := CreateProgramAddress(append(seeds, []byte{bump}), program)
	if err != nil {
		t.Fatalf("CreateProgramAddress() error = %v", err)
	}
	if again != addr {
		t.Fatalf("address mismatch: %s vs %s", again, addr)
	}

	other, _, err := FindProgramAddress([][]byte{[]byte("round"), {8, 0, 0, 0, 0, 0, 0, 0}}, program)
	if err != nil {
		t.Fatalf("FindProgramAddress() error = %v", err)
	}
	if other == addr {
		t.Fatal("different seeds produced the same address")
	}
	if len(seeds) != 2 {
		t.Fatalf("caller seeds were modified: %d", len(seeds))
	}
}

func TestCreateProgramAddressMatchesSolana(t *testing.T) {
	program := MustPublicKey("BPFLoaderUpgradeab1e11111111111111111111111")
	seedKey := MustPublicKey("SeedPubey1111111111111111111111111111111111")
	tests := []struct {
		name  string
		seeds [][]byte
		want  string
	}{
		{"empty seed", [][]byte{{}, {1}}, "BwqrghZA2htAcqq8dzP1WDAhTXYTYWj7CHxF5j7TDBAe"},
		{"utf8 seed", [][]byte{[]byte("☉"), {0}}, "13yWmRpaTR4r5nAktwLqMpRNr28tnVUZw26rTvPSSB19"},
		{"two seeds", [][]byte{[]byte("Talking"), []byte("Squirrels")}, "2fnQrngrQT4SeLcdToJAD96phoEjNL2man2kfRLCASVk"},
		{"pubkey seed", [][]byte{seedKey[:], {1}}, "976ymqVnfE32QFe6NfGDctSvVa36LWnvYxhU6G2232YL"},
	}
	for _, tt := range tests {
		got, err := CreateProgramAddress(tt.seeds, program)
		if err != nil {
			t.Fatalf("%s: CreateProgramAddress() error = %v", tt.name, err)
		}
		if got.String() != tt.want {
			t.Fatalf("%s: address = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestCreateProgramAddressRejectsLongSeed(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{[]byte(strings.Repeat("x", 33))}, SystemProgramID)
	if !errors.Is(err, ErrMaxSeedLength) {
		t.Fatalf("err = %v, want ErrMaxSeedLength", err)
	}
}

func TestRealPublicKeyIsOnCurve(t *testing.T) {
	kp, err := NewKeypairFromSeed(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewKeypairFromSeed() error = %v", err)
	}
	pk := kp.PublicKey()
	if !isOnCurve(pk[:]) {
		t.Fatalf("ed25519 public key %s reported off curve", pk)
	}
}
