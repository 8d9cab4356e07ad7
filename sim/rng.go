package sim

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// Stream names. Every consumer of randomness draws from its own stream, so
// extra draws in one never shift the values another one sees.
const (
	// StreamArrivals drives inter-arrival sampling and is seeded with the
	// master seed itself.
	StreamArrivals = "arrivals"
	// StreamJobTypes drives the weighted choice of job type.
	StreamJobTypes = "jobtypes"
	// StreamDurations is the prefix of the per-type duration streams.
	StreamDurations = "durations"
)

// DurationStream names the duration stream of one job type. Each type gets its
// own stream so adding a type leaves the durations of the others unchanged.
func DurationStream(jobType string) string {
	return StreamDurations + "_" + jobType
}

// RandomStreams hands out independent, reproducible *rand.Rand streams keyed
// by name. Not safe for concurrent use; the simulator is single-threaded.
type RandomStreams struct {
	seed    int64
	streams map[string]*rand.Rand
}

// NewRandomStreams creates the stream set for a master seed. Streams are
// created on first use.
func NewRandomStreams(seed int64) *RandomStreams {
	return &RandomStreams{seed: seed, streams: make(map[string]*rand.Rand)}
}

// Seed returns the master seed.
func (r *RandomStreams) Seed() int64 {
	return r.seed
}

// Stream returns the stream for name, creating it on first use. Repeated calls
// return the same instance, so draws continue where they left off.
func (r *RandomStreams) Stream(name string) *rand.Rand {
	s, ok := r.streams[name]
	if !ok {
		s = rand.New(rand.NewSource(r.seedFor(name)))
		r.streams[name] = s
	}
	return s
}

// seedFor hashes the master seed together with the stream name (FNV-1a) and
// spreads the result with the splitmix64 finalizer, so nearby master seeds do
// not give correlated streams.
func (r *RandomStreams) seedFor(name string) int64 {
	if name == StreamArrivals {
		return r.seed
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(r.seed))
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(name))
	return int64(splitmix64(h.Sum64()))
}

func splitmix64(z uint64) uint64 {
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	z *= 0x94d049bb133111eb
	z ^= z >> 31
	return z
}
