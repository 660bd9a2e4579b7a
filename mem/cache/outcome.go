package cache

// OutcomeKind classifies a single access.
type OutcomeKind int

// The possible results of an access.
const (
	Hit OutcomeKind = iota
	Miss
	MissEviction
)

// Labels used in verbose traces.
const (
	LabelHit      = "hit"
	LabelMiss     = "miss"
	LabelEviction = "eviction"
)

func (k OutcomeKind) String() string {
	switch k {
	case Hit:
		return LabelHit
	case Miss:
		return LabelMiss
	case MissEviction:
		return LabelMiss + " " + LabelEviction
	default:
		return "unknown"
	}
}

// Outcome is the result of one access. EvictedTag is only meaningful when
// Kind is MissEviction.
type Outcome struct {
	Kind       OutcomeKind
	EvictedTag uint64
}

// IsHit returns true if the access found its line.
func (o Outcome) IsHit() bool {
	return o.Kind == Hit
}

// IsMiss returns true if the access did not find its line, whether or not it
// evicted another one.
func (o Outcome) IsMiss() bool {
	return o.Kind == Miss || o.Kind == MissEviction
}

// Evicted returns true if the access replaced a valid line.
func (o Outcome) Evicted() bool {
	return o.Kind == MissEviction
}

// Labels returns the verbose labels of the outcome in the order they are
// reported.
func (o Outcome) Labels() []string {
	switch o.Kind {
	case Hit:
		return []string{LabelHit}
	case Miss:
		return []string{LabelMiss}
	case MissEviction:
		return []string{LabelMiss, LabelEviction}
	default:
		panic("unknown outcome kind")
	}
}
