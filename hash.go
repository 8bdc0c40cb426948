// Checksum algorithms for transaction commit records.
//
// Every commit record carries a 16 hex character checksum over the op lines
// of its transaction. Replay recomputes it and refuses to apply a
// transaction whose lines were torn or altered. Three algorithms are
// supported, selectable via Config.HashAlgorithm and recorded in the header.
package binder

import (
	"fmt"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Hash algorithm constants.
const (
	AlgXXHash3 = 1 // Default, fastest
	AlgFNV1a   = 2 // No external dependencies
	AlgBlake2b = 3 // Best distribution
)

// checksum returns a 16 hex character digest of data using alg.
// An unknown algorithm yields the empty string, which never matches.
func checksum(data []byte, alg int) string {
	switch alg {
	case AlgXXHash3:
		return fmt.Sprintf("%016x", xxh3.Hash(data))
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write(data)
		return fmt.Sprintf("%016x", h.Sum64())
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
		h.Write(data)
		return fmt.Sprintf("%016x", h.Sum(nil))
	default:
		return ""
	}
}

// algorithmByName maps settings names to algorithm constants.
func algorithmByName(name string) (int, error) {
	switch name {
	case "", "xxh3", "xxhash3":
		return AlgXXHash3, nil
	case "fnv", "fnv1a":
		return AlgFNV1a, nil
	case "blake2b":
		return AlgBlake2b, nil
	default:
		return 0, fmt.Errorf("unknown checksum algorithm %q", name)
	}
}
