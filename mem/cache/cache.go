// Package cache models a set-associative cache with LRU replacement. The
// cache only tracks which blocks are resident. Block contents, timing and
// write policies are not modeled.
package cache

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// HookPosAccess marks the completion of an access. The hook item is an
// AccessItem.
var HookPosAccess = &hooking.HookPos{Name: "CacheAccess"}

// AccessItem describes one access to the hooks.
type AccessItem struct {
	SetID   int
	Tag     uint64
	Outcome Outcome

	// Time is the logical time the accessed line was stamped with.
	Time uint64
}

// Cache is a set-associative cache. It owns all its lines and its logical
// clock. A Cache must not be shared by concurrent simulations.
type Cache struct {
	hooking.HookableBase

	geometry     Geometry
	tags         tagging.TagArray
	victimFinder tagging.VictimFinder

	now uint64
}

// Geometry returns the shape of the cache.
func (c *Cache) Geometry() Geometry {
	return c.geometry
}

// Now returns the current value of the logical clock.
func (c *Cache) Now() uint64 {
	return c.now
}

// Occupancy returns the number of valid lines in a set.
func (c *Cache) Occupancy(setID int) int {
	c.setIDMustBeInRange(setID)

	return c.tags.GetSet(setID).Occupancy
}

// ResidentTags returns the tags of the valid lines of a set in way order.
func (c *Cache) ResidentTags(setID int) []uint64 {
	c.setIDMustBeInRange(setID)

	var tags []uint64
	for _, block := range c.tags.GetSet(setID).Blocks {
		if block.IsValid {
			tags = append(tags, block.Tag)
		}
	}

	return tags
}

// Contains returns true if tag is resident in the set. It does not count as
// an access.
func (c *Cache) Contains(setID int, tag uint64) bool {
	c.setIDMustBeInRange(setID)

	_, found := c.tags.Lookup(setID, tag)

	return found
}

// AccessAddress decomposes addr and accesses the cache.
func (c *Cache) AccessAddress(addr uint64) Outcome {
	tag, setID := c.geometry.Decompose(addr)

	return c.Access(setID, tag)
}

// Access looks up tag in the given set, filling or replacing a line on a
// miss. It panics if the set index or the tag could not have been produced
// by the cache geometry.
func (c *Cache) Access(setID int, tag uint64) Outcome {
	c.setIDMustBeInRange(setID)
	c.tagMustFit(tag)

	var outcome Outcome

	block, found := c.tags.Lookup(setID, tag)
	if found {
		c.tags.Visit(block, c.now)
		outcome = Outcome{Kind: Hit}
	} else {
		outcome = c.fill(setID, tag)
	}

	time := c.tick()
	c.traceAccess(setID, tag, outcome, time)

	return outcome
}

func (c *Cache) fill(setID int, tag uint64) Outcome {
	set := c.tags.GetSet(setID)
	isFull := set.IsFull()

	victim := c.victimFinder.FindVictim(set)
	c.victimMustMatchOccupancy(victim, isFull)

	c.tags.Fill(victim, tag, c.now)

	if isFull {
		return Outcome{Kind: MissEviction, EvictedTag: victim.Tag}
	}

	return Outcome{Kind: Miss}
}

func (c *Cache) tick() uint64 {
	time := c.now
	c.now++

	return time
}

func (c *Cache) traceAccess(setID int, tag uint64, outcome Outcome, time uint64) {
	if c.NumHooks() == 0 {
		return
	}

	ctx := hooking.HookCtx{
		Domain: c,
		Pos:    HookPosAccess,
		Item: AccessItem{
			SetID:   setID,
			Tag:     tag,
			Outcome: outcome,
			Time:    time,
		},
	}

	c.InvokeHook(ctx)
}

// Reset invalidates every line and restarts the logical clock.
func (c *Cache) Reset() {
	c.tags.Reset()
	c.now = 0
}

func (c *Cache) setIDMustBeInRange(setID int) {
	if setID < 0 || setID >= c.geometry.NumSets() {
		panic(fmt.Sprintf("set index %d out of range [0, %d)",
			setID, c.geometry.NumSets()))
	}
}

func (c *Cache) tagMustFit(tag uint64) {
	if !c.geometry.TagFits(tag) {
		panic(fmt.Sprintf("tag 0x%x does not fit in %d bits",
			tag, c.geometry.TagBits()))
	}
}

func (c *Cache) victimMustMatchOccupancy(victim tagging.Block, isFull bool) {
	if victim.IsValid != isFull {
		panic(fmt.Sprintf(
			"victim way %d of set %d is valid=%t while set full=%t",
			victim.WayID, victim.SetID, victim.IsValid, isFull))
	}
}
