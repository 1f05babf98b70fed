package rmacs

import (
	"sort"
	"sync"
	"time"
)

// NodeQuality is one device's most recently reported quality index for a
// frequency.
type NodeQuality struct {
	Quality   int
	Timestamp time.Time
}

// FreqEntry is the per-frequency ledger row.
// AverageQuality is nil when no node report for this frequency falls
// within the expiry window.
type FreqEntry struct {
	Freq           int
	Nodes          map[string]NodeQuality
	AverageQuality *float64
}

// clone returns a value copy of e suitable for returning to a caller
// outside the ledger lock.
func (e FreqEntry) clone() FreqEntry {
	nodes := make(map[string]NodeQuality, len(e.Nodes))
	for k, v := range e.Nodes {
		nodes[k] = v
	}
	var avg *float64
	if e.AverageQuality != nil {
		a := *e.AverageQuality
		avg = &a
	}
	return FreqEntry{Freq: e.Freq, Nodes: nodes, AverageQuality: avg}
}

// Ledger is the channel-quality ledger: a per-frequency map of node
// reports, the server FSM's single source of truth for frequency
// ranking. It is guarded by a single mutex acquired for both ingestion
// and PFH re-sort, so a reader never observes a sort mid-ingest.
type Ledger struct {
	mu           sync.Mutex
	entries      map[int]*FreqEntry
	expiryWindow time.Duration
}

// NewLedger creates an empty ledger. expiryWindow bounds how far back a
// node report still counts toward average_quality.
func NewLedger(expiryWindow time.Duration) *Ledger {
	return &Ledger{
		entries:      make(map[int]*FreqEntry),
		expiryWindow: expiryWindow,
	}
}

// Ingest records a quality report for (freq, device) and recomputes
// average_quality for freq. now should be the report's arrival time, not
// the sample's own clock.
func (l *Ledger) Ingest(freq int, device string, quality int, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[freq]
	if !ok {
		entry = &FreqEntry{Freq: freq, Nodes: make(map[string]NodeQuality)}
		l.entries[freq] = entry
	}
	entry.Nodes[device] = NodeQuality{Quality: quality, Timestamp: now}
	l.recomputeAverage(entry)
}

// recomputeAverage recalculates entry.AverageQuality from the node
// reports whose timestamp falls within expiryWindow of the most recent
// report for that frequency.
// Callers must hold l.mu.
func (l *Ledger) recomputeAverage(entry *FreqEntry) {
	if len(entry.Nodes) == 0 {
		entry.AverageQuality = nil
		return
	}

	var latest time.Time
	for _, nq := range entry.Nodes {
		if nq.Timestamp.After(latest) {
			latest = nq.Timestamp
		}
	}
	cutoff := latest.Add(-l.expiryWindow)

	var sum, count int
	for _, nq := range entry.Nodes {
		if nq.Timestamp.Before(cutoff) {
			continue
		}
		sum += nq.Quality
		count++
	}

	if count == 0 {
		entry.AverageQuality = nil
		return
	}
	avg := float64(sum) / float64(count)
	entry.AverageQuality = &avg
}

// Snapshot returns every ledger entry as independent copies, safe to
// read after the call returns without holding any lock.
func (l *Ledger) Snapshot() []FreqEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]FreqEntry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.clone())
	}
	return out
}

// Len reports the number of distinct frequencies currently tracked.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// SortedByQuality returns every tracked frequency's entry sorted
// ascending by average_quality (best first), the ordering the PFH
// algorithm ranks candidates by. Entries whose average
// is ⊥ sort last, since they carry no basis for comparison; ties break
// by frequency for a deterministic order.
func (l *Ledger) SortedByQuality() []FreqEntry {
	entries := l.Snapshot()

	sort.Slice(entries, func(i, j int) bool {
		ai, aj := entries[i].AverageQuality, entries[j].AverageQuality
		switch {
		case ai == nil && aj == nil:
			return entries[i].Freq < entries[j].Freq
		case ai == nil:
			return false
		case aj == nil:
			return true
		case *ai != *aj:
			return *ai < *aj
		default:
			return entries[i].Freq < entries[j].Freq
		}
	})
	return entries
}
