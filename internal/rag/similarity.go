// Package rag holds the similarity engine used for document retrieval.
package rag

import (
	"math"
	"sort"
)

const DefaultTopK = 5

// Candidate is one stored vector competing for a place in the ranking.
type Candidate struct {
	ID     uint64
	Vector []float32
}

type Scored struct {
	ID    uint64
	Score float64
}

// Cosine returns dot(a,b) / (|a|*|b|). It is 0 when either vector has zero
// magnitude, is empty, or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Options controls Rank. A nil Threshold applies no floor.
type Options struct {
	K         int
	Threshold *float64
}

func Threshold(v float64) *float64 { return &v }

// Rank scores every candidate against query, drops scores at or below the
// threshold, and returns at most K results ordered by score descending.
// Equal scores keep candidate order.
func Rank(query []float32, candidates []Candidate, opts Options) []Scored {
	k := opts.K
	if k <= 0 {
		k = DefaultTopK
	}

	out := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		s := Cosine(query, c.Vector)
		if opts.Threshold != nil && s <= *opts.Threshold {
			continue
		}
		out = append(out, Scored{ID: c.ID, Score: s})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if len(out) > k {
		out = out[:k]
	}
	return out
}
