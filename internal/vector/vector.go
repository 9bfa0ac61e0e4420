// Package vector implements the embedding blob codec and similarity search.
// Embeddings are stored as little-endian packed float32 arrays; all
// similarity math happens in-process over candidate blobs.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Serialize packs a float32 vector into a little-endian byte blob.
func Serialize(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Deserialize unpacks a little-endian float32 blob.
func Deserialize(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

// Normalize scales vec to unit length in place and returns it.
// A zero vector is returned unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := 1.0 / math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
	return vec
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Returns 0 when either vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Candidate is one scored item in a similarity search.
type Candidate struct {
	ID        string
	Embedding []byte
}

// Match is a similarity search hit.
type Match struct {
	ID    string
	Score float64
}

// SearchMemory ranks candidates by cosine similarity to the query and
// returns the top k. Candidates with empty or malformed blobs are skipped.
func SearchMemory(query []float32, candidates []Candidate, k int) []Match {
	if k <= 0 {
		k = 10
	}
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		vec, err := Deserialize(c.Embedding)
		if err != nil {
			continue
		}
		matches = append(matches, Match{ID: c.ID, Score: CosineSimilarity(query, vec)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
