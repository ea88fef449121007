package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// Static derives unit vectors from a hash of the text. The same text
// always embeds identically, distinct texts land far apart, and no network
// or model is involved. Useful offline and in tests; not semantic.
type Static struct {
	dims int
}

// NewStatic returns a static provider. Dimensions below 1 default to 128.
func NewStatic(dims int) *Static {
	if dims < 1 {
		dims = 128
	}
	return &Static{dims: dims}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Dimensions() int { return s.dims }

// Embed hashes each text into a deterministic unit vector.
func (s *Static) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vector(text)
	}
	return out, nil
}

func (s *Static) vector(text string) []float32 {
	vec := make([]float32, s.dims)
	seed := sha256.Sum256([]byte(text))
	block := seed
	var norm float64
	for i := 0; i < s.dims; i++ {
		if i > 0 && i%8 == 0 {
			block = sha256.Sum256(block[:])
		}
		bits := binary.LittleEndian.Uint32(block[(i%8)*4:])
		// Map onto [-1, 1).
		v := float32(int32(bits)) / float32(math.MaxInt32)
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
