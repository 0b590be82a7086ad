// Package gc aggregates garbage collection events into per-kind counters,
// estimates GC load, and reports one sample per classified event.
package gc

// Kind classifies a garbage collection event.
type Kind int

const (
	// KindUnknown is any event a source could not classify. Unknown events
	// are counted but never aggregated.
	KindUnknown Kind = iota
	// KindMinor is a scavenge: memory returned to the OS without a full cycle.
	KindMinor
	// KindMajor is a full, blocking collection (runtime.GC and friends).
	KindMajor
	// KindIncremental is a regular concurrent mark cycle triggered by the pacer.
	KindIncremental
	// KindWeakCallback is finalizer and cleanup processing.
	KindWeakCallback
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindMinor:        "scavenge",
	KindMajor:        "markSweepCompact",
	KindIncremental:  "incrementalMarking",
	KindWeakCallback: "processWeakCallbacks",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Stat is the running total for one kind.
type Stat struct {
	Count           uint64  `json:"count"`
	TotalDurationMs float64 `json:"totalDurationMs"`
}

// Stats holds the accumulators for every aggregated kind.
type Stats struct {
	Scavenge             Stat `json:"scavenge"`
	MarkSweepCompact     Stat `json:"markSweepCompact"`
	IncrementalMarking   Stat `json:"incrementalMarking"`
	ProcessWeakCallbacks Stat `json:"processWeakCallbacks"`
}

// buckets maps each aggregated kind to its accumulator. Kinds missing
// from the table are not aggregated.
var buckets = map[Kind]func(*Stats) *Stat{
	KindMinor:        func(s *Stats) *Stat { return &s.Scavenge },
	KindMajor:        func(s *Stats) *Stat { return &s.MarkSweepCompact },
	KindIncremental:  func(s *Stats) *Stat { return &s.IncrementalMarking },
	KindWeakCallback: func(s *Stats) *Stat { return &s.ProcessWeakCallbacks },
}

// Bucket returns the accumulator for k, or nil if k is not aggregated.
func (s *Stats) Bucket(k Kind) *Stat {
	bucket, ok := buckets[k]
	if !ok {
		return nil
	}
	return bucket(s)
}
