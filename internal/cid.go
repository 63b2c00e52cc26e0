package internal

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ErrBadContentID is returned when a string does not parse as a CIDv1 with a
// sha2-256 multihash.
var ErrBadContentID = errors.New("internal: malformed content id")

// ContentID returns the CIDv1 (raw codec, sha2-256 multihash) of data. Model
// artifacts are versioned by this identifier.
func ContentID(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("internal: can't hash content: %w", err)
	}

	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// VerifyContentID reports whether id is the content identifier of data.
func VerifyContentID(id string, data []byte) error {
	want, err := cid.Decode(id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadContentID, err)
	}

	decoded, err := multihash.Decode(want.Hash())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadContentID, err)
	}

	if decoded.Code != multihash.SHA2_256 {
		return fmt.Errorf("%w: unsupported hash function %d", ErrBadContentID, decoded.Code)
	}

	got, err := ContentID(data)
	if err != nil {
		return err
	}

	if got != want.String() {
		return fmt.Errorf("%w: content hashes to %s, wanted %s", ErrBadContentID, got, want.String())
	}

	return nil
}
