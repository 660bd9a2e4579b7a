// Package tagging keeps the tag state of a set-associative cache.
package tagging

// TagArray stores the blocks of a cache organized as sets of ways.
type TagArray interface {
	Lookup(setID int, tag uint64) (Block, bool)
	Visit(block Block, now uint64)
	Fill(block Block, tag uint64, now uint64) Block
	GetSet(setID int) *Set
	NumSets() int
	NumWays() int
	Reset()
}

// NewTagArray creates a tag array with numSets sets of numWays blocks each.
// All blocks start invalid.
func NewTagArray(numSets int, numWays int) TagArray {
	t := &tagArrayImpl{
		numSets: numSets,
		numWays: numWays,
	}

	t.Reset()

	return t
}

// A Block of a cache is the information that is associated with a cache line
type Block struct {
	SetID    int
	WayID    int
	Tag      uint64
	IsValid  bool
	LastUsed uint64
}

// A Set is a list of blocks where a certain piece memory can be stored at.
// Occupancy counts the valid blocks in Blocks.
type Set struct {
	Blocks    []Block
	Occupancy int
}

// IsFull returns true if every block of the set holds a valid line.
func (s *Set) IsFull() bool {
	return s.Occupancy == len(s.Blocks)
}

type tagArrayImpl struct {
	numSets int
	numWays int
	sets    []Set
}

func (t *tagArrayImpl) NumSets() int {
	return t.numSets
}

func (t *tagArrayImpl) NumWays() int {
	return t.numWays
}

// GetSet returns the set with the given ID.
func (t *tagArrayImpl) GetSet(setID int) *Set {
	t.setIDMustBeInRange(setID)

	return &t.sets[setID]
}

// Lookup finds the valid block holding tag in the given set.
func (t *tagArrayImpl) Lookup(setID int, tag uint64) (Block, bool) {
	set := t.GetSet(setID)
	for _, block := range set.Blocks {
		if block.IsValid && block.Tag == tag {
			return block, true
		}
	}

	return Block{}, false
}

// Visit marks the block as used at the given time.
func (t *tagArrayImpl) Visit(block Block, now uint64) {
	set := t.GetSet(block.SetID)
	set.Blocks[block.WayID].LastUsed = now
}

// Fill places tag into the position of block and marks it as used at the
// given time. Filling an invalid block increases the occupancy of the set.
// The returned block is the new content of the position.
func (t *tagArrayImpl) Fill(block Block, tag uint64, now uint64) Block {
	set := t.GetSet(block.SetID)
	current := &set.Blocks[block.WayID]

	if !current.IsValid {
		set.Occupancy++
	}

	current.IsValid = true
	current.Tag = tag
	current.LastUsed = now

	return *current
}

// Reset will mark all the blocks in the tag array invalid
func (t *tagArrayImpl) Reset() {
	t.sets = make([]Set, t.numSets)
	for i := 0; i < t.numSets; i++ {
		blocks := make([]Block, t.numWays)
		for j := range blocks {
			blocks[j] = Block{SetID: i, WayID: j}
		}

		t.sets[i].Blocks = blocks
	}
}

func (t *tagArrayImpl) setIDMustBeInRange(setID int) {
	if setID < 0 || setID >= t.numSets {
		panic("set index out of range")
	}
}
