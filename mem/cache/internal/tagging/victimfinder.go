package tagging

// A VictimFinder decides which block of a set receives a new line.
type VictimFinder interface {
	FindVictim(set *Set) Block
}

// LRUVictimFinder picks an empty block first and otherwise the least recently
// used one.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the first invalid block of the set in way order. If all
// the blocks are valid, it returns the block with the strictly smallest
// LastUsed, so the lowest way wins a tie.
func (e *LRUVictimFinder) FindVictim(set *Set) Block {
	if len(set.Blocks) == 0 {
		panic("set has no blocks")
	}

	if !set.IsFull() {
		for _, block := range set.Blocks {
			if !block.IsValid {
				return block
			}
		}
	}

	victim := set.Blocks[0]
	for _, block := range set.Blocks[1:] {
		if block.LastUsed < victim.LastUsed {
			victim = block
		}
	}

	return victim
}
