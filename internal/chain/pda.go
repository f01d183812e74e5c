package chain

import (
	"crypto/sha256"
	"errors"

	"go.dedis.ch/kyber/v4/group/edwards25519"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
	pdaMarker     = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLength = errors.New("seed exceeds 32 bytes")
	ErrTooManySeeds  = errors.New("too many seeds")
	ErrOnCurve       = errors.New("derived address is on the ed25519 curve")
	ErrNoViableBump  = errors.New("unable to find a viable program address bump")
)

var curve = edwards25519.NewBlakeSHA256Ed25519()

// CreateProgramAddress hashes seeds with the program id. Addresses that decode
// to a valid ed25519 point are rejected since they could have a private key.
func CreateProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, error) {
	if len(seeds) > maxSeeds {
		return PublicKey{}, ErrTooManySeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return PublicKey{}, ErrMaxSeedLength
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var addr PublicKey
	copy(addr[:], h.Sum(nil))
	if isOnCurve(addr[:]) {
		return PublicKey{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address with its bump.
func FindProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		if errors.Is(err, ErrOnCurve) {
			continue
		}
		if err != nil {
			return PublicKey{}, 0, err
		}
		return addr, uint8(bump), nil
	}
	return PublicKey{}, 0, ErrNoViableBump
}

func isOnCurve(b []byte) bool {
	return curve.Point().UnmarshalBinary(b) == nil
}
