package cache

import (
	"errors"
	"fmt"
)

// AddressBits is the width of the addresses the cache decodes.
const AddressBits = 64

// MaxLines bounds the number of lines a cache may allocate.
const MaxLines = 1 << 22

var (
	// ErrInvalidGeometry reports a geometry that cannot describe a cache.
	ErrInvalidGeometry = errors.New("invalid cache geometry")

	// ErrGeometryTooLarge reports a geometry whose lines cannot be allocated.
	ErrGeometryTooLarge = errors.New("cache geometry too large to allocate")
)

// Geometry describes the shape of a set-associative cache.
type Geometry struct {
	// SetBits is the number of set-index bits. The cache has 2^SetBits sets.
	SetBits int `json:"set_bits"`

	// Lines is the number of lines per set (the associativity).
	Lines int `json:"lines"`

	// BlockBits is the number of block-offset bits.
	BlockBits int `json:"block_bits"`
}

// Validate checks that the geometry describes a cache that can be built.
func (g Geometry) Validate() error {
	switch {
	case g.SetBits < 0:
		return fmt.Errorf("%w: set bits must not be negative, got %d",
			ErrInvalidGeometry, g.SetBits)
	case g.BlockBits < 0:
		return fmt.Errorf("%w: block bits must not be negative, got %d",
			ErrInvalidGeometry, g.BlockBits)
	case g.Lines < 1:
		return fmt.Errorf("%w: lines per set must be positive, got %d",
			ErrInvalidGeometry, g.Lines)
	case g.SetBits+g.BlockBits >= AddressBits:
		return fmt.Errorf("%w: set bits plus block bits must be less than %d",
			ErrInvalidGeometry, AddressBits)
	}

	if g.SetBits > 30 || g.Lines > MaxLines/g.NumSets() {
		return fmt.Errorf("%w: %s needs more than %d lines",
			ErrGeometryTooLarge, g, MaxLines)
	}

	return nil
}

// NumSets returns the number of sets.
func (g Geometry) NumSets() int {
	return 1 << g.SetBits
}

// NumLines returns the total number of lines of the cache.
func (g Geometry) NumLines() int {
	return g.NumSets() * g.Lines
}

// BlockSize returns the number of bytes in a block.
func (g Geometry) BlockSize() uint64 {
	return 1 << g.BlockBits
}

// TagBits returns the number of address bits left for the tag.
func (g Geometry) TagBits() int {
	return AddressBits - g.SetBits - g.BlockBits
}

// Decompose splits an address into its tag and set index.
func (g Geometry) Decompose(addr uint64) (tag uint64, setID int) {
	setMask := uint64(1)<<g.SetBits - 1

	tag = addr >> (g.BlockBits + g.SetBits)
	setID = int((addr >> g.BlockBits) & setMask)

	return tag, setID
}

// Offset returns the block offset of an address.
func (g Geometry) Offset(addr uint64) uint64 {
	return addr & (g.BlockSize() - 1)
}

// TagFits returns true if the tag could have come out of Decompose.
func (g Geometry) TagFits(tag uint64) bool {
	if g.TagBits() >= AddressBits {
		return true
	}

	return tag>>g.TagBits() == 0
}

func (g Geometry) String() string {
	return fmt.Sprintf("s=%d E=%d b=%d", g.SetBits, g.Lines, g.BlockBits)
}
