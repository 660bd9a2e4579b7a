package cache

import (
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
)

// Builder can build caches.
type Builder struct {
	geometry     Geometry
	victimFinder tagging.VictimFinder
}

// MakeBuilder creates a new builder of a single-line direct-mapped cache.
func MakeBuilder() Builder {
	return Builder{
		geometry: Geometry{SetBits: 0, Lines: 1, BlockBits: 0},
	}
}

// WithGeometry sets the whole geometry of the cache.
func (b Builder) WithGeometry(g Geometry) Builder {
	b.geometry = g
	return b
}

// WithSetBits sets the number of set-index bits.
func (b Builder) WithSetBits(setBits int) Builder {
	b.geometry.SetBits = setBits
	return b
}

// WithLines sets the number of lines per set.
func (b Builder) WithLines(lines int) Builder {
	b.geometry.Lines = lines
	return b
}

// WithBlockBits sets the number of block-offset bits.
func (b Builder) WithBlockBits(blockBits int) Builder {
	b.geometry.BlockBits = blockBits
	return b
}

// WithVictimFinder overrides the LRU replacement policy.
func (b Builder) WithVictimFinder(victimFinder tagging.VictimFinder) Builder {
	b.victimFinder = victimFinder
	return b
}

// Build builds a cache. It fails if the geometry is invalid or too large to
// allocate.
func (b Builder) Build() (*Cache, error) {
	err := b.geometry.Validate()
	if err != nil {
		return nil, err
	}

	c := &Cache{
		geometry:     b.geometry,
		tags:         tagging.NewTagArray(b.geometry.NumSets(), b.geometry.Lines),
		victimFinder: b.createVictimFinder(),
	}

	return c, nil
}

func (b Builder) createVictimFinder() tagging.VictimFinder {
	if b.victimFinder != nil {
		return b.victimFinder
	}

	return tagging.NewLRUVictimFinder()
}
