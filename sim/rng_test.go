package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draw(r *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Float64()
	}
	return out
}

func TestRandomStreams_SameSeedSameValues(t *testing.T) {
	a := NewRandomStreams(42)
	b := NewRandomStreams(42)
	for _, name := range []string{StreamArrivals, StreamJobTypes, DurationStream("print")} {
		assert.Equal(t, draw(a.Stream(name), 5), draw(b.Stream(name), 5), name)
	}
}

func TestRandomStreams_StreamsAreIsolated(t *testing.T) {
	// GIVEN one stream set that draws heavily from arrivals first
	busy := NewRandomStreams(42)
	draw(busy.Stream(StreamArrivals), 100)

	// WHEN the job-type stream is used afterwards
	got := draw(busy.Stream(StreamJobTypes), 3)

	// THEN it matches a fresh set, untouched by the arrival draws
	assert.Equal(t, draw(NewRandomStreams(42).Stream(StreamJobTypes), 3), got)
}

func TestRandomStreams_ArrivalsUseMasterSeed(t *testing.T) {
	direct := rand.New(rand.NewSource(42))
	assert.Equal(t, draw(direct, 10), draw(NewRandomStreams(42).Stream(StreamArrivals), 10))
}

func TestRandomStreams_DistinctStreamsAndSeeds(t *testing.T) {
	r := NewRandomStreams(7)
	seeds := map[int64]string{}
	for _, name := range []string{StreamArrivals, StreamJobTypes, DurationStream("print"), DurationStream("plot")} {
		s := r.seedFor(name)
		prev, dup := seeds[s]
		require.False(t, dup, "%s and %s share seed %d", name, prev, s)
		seeds[s] = name
	}
	// neighbouring master seeds must not give neighbouring stream seeds
	assert.NotEqual(t, NewRandomStreams(7).seedFor(StreamJobTypes)+1, NewRandomStreams(8).seedFor(StreamJobTypes))
}

func TestRandomStreams_CachedAndLazy(t *testing.T) {
	r := NewRandomStreams(1)
	assert.Empty(t, r.streams)
	first := r.Stream(DurationStream("polish"))
	assert.Same(t, first, r.Stream(DurationStream("polish")))
	assert.Len(t, r.streams, 1)
	assert.Equal(t, int64(1), r.Seed())
}

func TestDurationStream_Name(t *testing.T) {
	assert.Equal(t, "durations_print", DurationStream("print"))
	assert.NotEqual(t, DurationStream("print"), DurationStream("plot"))
}
