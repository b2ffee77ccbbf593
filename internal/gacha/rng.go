package gacha

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource abstract

type RandomSource interface {
	Float64() float64 // [0, 1)
}

// crypto random : default generation method
type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	// 53 random bits => [0, 1)
	return float64(cryptoUint64()>>11) / (1 << 53)
}

func cryptoUint64() uint64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		// back to math/rand/v2
		return rand.Uint64()
	}
	return binary.BigEndian.Uint64(buf[:])
}

func DefaultRNG() RandomSource { return cryptoRNG{} }

// RandomSeed returns a non-deterministic base seed for unseeded runs.
func RandomSeed() uint64 { return cryptoUint64() }

// Replicable RNG (e.g. Monte Carlo)
type seededRNG struct{ r *rand.Rand }

func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }

// TrialSource is a seeded source that can be moved to the stream of another
// trial without allocating. After Reset(base, i) it yields exactly the values
// of NewSeededRNG(base + i).
type TrialSource struct {
	pcg *rand.PCG
	r   *rand.Rand
}

func NewTrialSource() *TrialSource {
	pcg := rand.NewPCG(0, 0)
	return &TrialSource{pcg: pcg, r: rand.New(pcg)}
}

// Reset moves t to the stream of trial i.
func (t *TrialSource) Reset(base uint64, trial int) {
	t.pcg.Seed(base+uint64(trial), 0)
}

func (t *TrialSource) Float64() float64 { return t.r.Float64() }
