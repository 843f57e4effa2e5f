package minhash

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sort"
)

// Index is a banded locality-sensitive hash over MinHash signatures.
// A signature is split into bands of rows values each; a collision in any
// single band makes an item a candidate. This trades a controlled false
// negative rate for near-linear candidate generation instead of an
// exhaustive pairwise comparison.
type Index struct {
	bands int
	rows  int

	// buckets[band][sliceHash] -> item ids whose band slice hashed there.
	buckets []map[uint64][]int

	sigs map[int]Signature
}

// Candidate is one LSH query result.
type Candidate struct {
	ID         int
	Similarity float64
}

// NewIndex creates an Index with the given band and row counts. Every
// signature added must have length bands*rows.
func NewIndex(bands, rows int) (*Index, error) {
	if bands <= 0 || rows <= 0 {
		return nil, fmt.Errorf("lsh: bands and rows must be positive, got %d x %d", bands, rows)
	}

	buckets := make([]map[uint64][]int, bands)
	for i := range buckets {
		buckets[i] = make(map[uint64][]int)
	}

	return &Index{
		bands:   bands,
		rows:    rows,
		buckets: buckets,
		sigs:    make(map[int]Signature),
	}, nil
}

// SignatureLen returns the required signature length, bands*rows.
func (x *Index) SignatureLen() int {
	return x.bands * x.rows
}

// Len returns the number of indexed items.
func (x *Index) Len() int {
	return len(x.sigs)
}

// Add indexes a signature under the given id, hashing each band slice
// into its bucket.
func (x *Index) Add(id int, sig Signature) error {
	if len(sig) != x.SignatureLen() {
		return fmt.Errorf("lsh: signature length %d, index requires %d", len(sig), x.SignatureLen())
	}

	x.sigs[id] = sig
	for band := 0; band < x.bands; band++ {
		h := x.bandHash(sig, band)
		x.buckets[band][h] = append(x.buckets[band][h], id)
	}
	return nil
}

// Query returns items colliding with sig in at least one band whose
// estimated full-signature similarity is at or above threshold, sorted
// by descending similarity with ascending id as tie-break. The query
// signature itself need not be indexed; an indexed id is never returned
// for its own query signature value twice.
func (x *Index) Query(sig Signature, threshold float64) ([]Candidate, error) {
	if len(sig) != x.SignatureLen() {
		return nil, fmt.Errorf("lsh: signature length %d, index requires %d", len(sig), x.SignatureLen())
	}

	seen := make(map[int]bool)
	var out []Candidate
	for band := 0; band < x.bands; band++ {
		h := x.bandHash(sig, band)
		for _, id := range x.buckets[band][h] {
			if seen[id] {
				continue
			}
			seen[id] = true
			est := Estimate(sig, x.sigs[id])
			if est >= threshold {
				out = append(out, Candidate{ID: id, Similarity: est})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// bandHash hashes the band's rows-length slice of the signature.
func (x *Index) bandHash(sig Signature, band int) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	start := band * x.rows
	for _, v := range sig[start : start+x.rows] {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	return h.Sum64()
}
