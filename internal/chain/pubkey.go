package chain

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	PublicKeyLength = 32
	SignatureLength = 64
)

var (
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidHash      = errors.New("invalid hash")
)

// PublicKey is a 32-byte ledger address, rendered in base58.
type PublicKey [PublicKeyLength]byte

// SystemProgramID is the all-zero address "11111111111111111111111111111111".
var SystemProgramID PublicKey

func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw := base58.Decode(s)
	if len(raw) != PublicKeyLength {
		return pk, fmt.Errorf("%w: %q", ErrInvalidPublicKey, s)
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPublicKey is ParsePublicKey for compile-time constants.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeyLength {
		return pk, fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (k PublicKey) String() string { return base58.Encode(k[:]) }

func (k PublicKey) IsZero() bool { return k == PublicKey{} }

func (k PublicKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *PublicKey) UnmarshalText(b []byte) error {
	pk, err := ParsePublicKey(string(b))
	if err != nil {
		return err
	}
	*k = pk
	return nil
}

type Signature [SignatureLength]byte

func ParseSignature(s string) (Signature, error) {
	var sig Signature
	raw := base58.Decode(s)
	if len(raw) != SignatureLength {
		return sig, fmt.Errorf("%w: %q", ErrInvalidSignature, s)
	}
	copy(sig[:], raw)
	return sig, nil
}

func (s Signature) String() string { return base58.Encode(s[:]) }

func (s Signature) IsZero() bool { return s == Signature{} }

func (s Signature) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Hash is a recent blockhash.
type Hash [32]byte

func ParseHash(s string) (Hash, error) {
	var h Hash
	raw := base58.Decode(s)
	if len(raw) != len(h) {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string { return base58.Encode(h[:]) }
