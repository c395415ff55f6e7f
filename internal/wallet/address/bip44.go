package address

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
)

const hardenedOffset = uint64(bip32.FirstHardenedChild)

// DefaultPath is the first account of coin type 60.
const DefaultPath = "m/44'/60'/0'/0/0"

func (s *service) DerivePrivateKey(_ context.Context, seed []byte, path string) ([]byte, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	for _, index := range indices {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	return key.Key, nil
}

// ParsePath parses a BIP44 path such as "m/44'/60'/0'/0/0" into child indices.
func ParsePath(path string) ([]uint32, error) {
	segments := strings.Split(strings.TrimSpace(path), "/")
	if len(segments) < 2 || segments[0] != "m" {
		return nil, errors.Errorf("invalid BIP44 path: %q", path)
	}

	indices := make([]uint32, 0, len(segments)-1)
	for _, segment := range segments[1:] {
		hardened := strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h")
		if hardened {
			segment = segment[:len(segment)-1]
		}

		index, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, errors.Errorf("invalid path segment %q in %q", segment, path)
		}

		if hardened {
			index += hardenedOffset
		}

		indices = append(indices, uint32(index))
	}

	return indices, nil
}
