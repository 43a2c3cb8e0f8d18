package sim

import "math/rand/v2"

// CommonRandomNumbers caches uniform draws by key so that every arm of a
// replication sees the same random numbers for the same purpose.
//
// For a fixed key, the values returned by Draw(key, n) are always a prefix of
// the values returned by any later Draw(key, m) with m >= n. Values are only
// ever appended, never regenerated or reordered.
//
// Thread-safety: NOT thread-safe. One instance per replication.
type CommonRandomNumbers struct {
	rng    *rand.Rand
	values map[string][]float64
}

// NewCommonRandomNumbers creates a cache drawing from rng.
func NewCommonRandomNumbers(rng *rand.Rand) *CommonRandomNumbers {
	return &CommonRandomNumbers{
		rng:    rng,
		values: make(map[string][]float64),
	}
}

// Draw returns the first n cached uniforms for key, drawing and appending
// whatever is missing. The returned slice is a view into the cache and must
// not be modified.
func (c *CommonRandomNumbers) Draw(key string, n int) []float64 {
	if n <= 0 {
		return nil
	}
	cached := c.values[key]
	for len(cached) < n {
		cached = append(cached, c.rng.Float64())
	}
	c.values[key] = cached
	return cached[:n:n]
}

// DrawOne returns the first cached uniform for key.
func (c *CommonRandomNumbers) DrawOne(key string) float64 {
	return c.Draw(key, 1)[0]
}

// DrawAt returns the i-th (0-based) cached uniform for key.
func (c *CommonRandomNumbers) DrawAt(key string, i int) float64 {
	return c.Draw(key, i+1)[i]
}

// Len reports how many values are cached for key.
func (c *CommonRandomNumbers) Len(key string) int {
	return len(c.values[key])
}

// Keys reports how many distinct keys have been drawn.
func (c *CommonRandomNumbers) Keys() int {
	return len(c.values)
}
