package chain

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrInvalidKeypair = errors.New("invalid keypair")

// Keypair is an ed25519 signing key in the 64-byte seed||public layout used by
// keypair files.
type Keypair struct {
	priv ed25519.PrivateKey
}

func NewKeypairFromSeed(seed []byte) (Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("%w: seed length %d", ErrInvalidKeypair, len(seed))
	}
	return Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func GenerateKeypair() (Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{priv: priv}, nil
}

// KeypairFromJSON parses a JSON array of 64 byte values.
func KeypairFromJSON(raw string) (Keypair, error) {
	var ints []int
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &ints); err != nil {
		return Keypair{}, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return Keypair{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(ints))
	}
	b := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return Keypair{}, fmt.Errorf("%w: byte %d out of range", ErrInvalidKeypair, i)
		}
		b[i] = byte(v)
	}
	kp, err := NewKeypairFromSeed(b[:ed25519.SeedSize])
	if err != nil {
		return Keypair{}, err
	}
	if !bytes.Equal(kp.priv[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
		return Keypair{}, fmt.Errorf("%w: public half does not match seed", ErrInvalidKeypair)
	}
	return kp, nil
}

func LoadKeypairFile(path string) (Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Keypair{}, fmt.Errorf("read keypair %q: %w", path, err)
	}
	return KeypairFromJSON(string(raw))
}

// JSON renders the keypair in the keypair-file format.
func (k Keypair) JSON() string {
	ints := make([]int, len(k.priv))
	for i, b := range k.priv {
		ints[i] = int(b)
	}
	raw, _ := json.Marshal(ints)
	return string(raw)
}

func (k Keypair) PublicKey() PublicKey {
	var pk PublicKey
	copy(pk[:], k.priv.Public().(ed25519.PublicKey))
	return pk
}

func (k Keypair) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(k.priv, msg))
	return sig
}
