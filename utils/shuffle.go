package utils

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"sort"
)

// DeterministicShuffle returns a permutation of ids that depends only on the
// seed and the set of ids, not their input order. The ids are sorted before
// shuffling and the PCG stream is seeded from SHA-256(seed), so the order is
// stable across processes and Go releases.
func DeterministicShuffle(ids []string, seed string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)

	sum := sha256.Sum256([]byte(seed))
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])))

	for i := len(out) - 1; i > 0; i-- {
		j := int(rng.Uint64N(uint64(i + 1)))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
