// Package minhash implements MinHash signatures and a banded LSH index
// for sub-quadratic near-duplicate candidate retrieval.
package minhash

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// mersennePrime is the field modulus for the affine hash family.
const mersennePrime = uint64(1<<31 - 1)

// DefaultNumHashes is the signature length used when the config does not
// override it. With k=128 the estimator's expected absolute error stays
// well under 0.1.
const DefaultNumHashes = 128

// Signature is a fixed-length array of per-function minimum hash values.
// The matching-position fraction of two signatures is an unbiased
// estimator of the Jaccard similarity of the underlying token sets.
type Signature []uint64

// hashFunc is one member of the universal family h(x) = (a*x + b) mod p.
type hashFunc struct {
	a uint64
	b uint64
}

// Generator projects token sets onto MinHash signatures. Signatures are
// deterministic given the generator's seed and the input tokens.
type Generator struct {
	funcs []hashFunc
}

// NewGenerator creates a Generator with numHashes hash functions drawn
// from a seeded RNG. numHashes <= 0 falls back to DefaultNumHashes.
func NewGenerator(numHashes int, seed int64) *Generator {
	if numHashes <= 0 {
		numHashes = DefaultNumHashes
	}

	rng := rand.New(rand.NewSource(seed))
	funcs := make([]hashFunc, numHashes)
	for i := range funcs {
		// a must be non-zero and below the prime.
		funcs[i] = hashFunc{
			a: uint64(rng.Int63n(int64(mersennePrime-1))) + 1,
			b: uint64(rng.Int63n(int64(mersennePrime))),
		}
	}

	return &Generator{funcs: funcs}
}

// NumHashes returns the signature length this generator produces.
func (g *Generator) NumHashes() int {
	return len(g.funcs)
}

// Sum computes the signature for a token set: per hash function, the
// minimum hash over all tokens. An empty set yields MaxUint64 in every
// position.
func (g *Generator) Sum(tokens []string) Signature {
	sig := make(Signature, len(g.funcs))
	for i := range sig {
		sig[i] = math.MaxUint64
	}

	for _, tok := range tokens {
		base := baseHash(tok)
		for i, f := range g.funcs {
			h := (f.a*base + f.b) % mersennePrime
			if h < sig[i] {
				sig[i] = h
			}
		}
	}

	return sig
}

// baseHash maps a token to the field via FNV-1a.
func baseHash(token string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(token))
	return h.Sum64() % mersennePrime
}

// Estimate returns the fraction of matching positions between two
// signatures. Signatures of different lengths are incomparable and
// estimate to 0.
func Estimate(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}

	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
