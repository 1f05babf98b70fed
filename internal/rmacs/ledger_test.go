package rmacs_test

import (
	"testing"
	"time"

	"github.com/tiiuae/rmacs/internal/rmacs"
)

// TestLedgerAverageQualityWindow covers reports for freq=5180 from
// three devices at t=100,105,160 with a 30s
// expiry window. Only the report at t=160 falls within [130,160], so
// average_quality must equal its own quality (4), not the mean of all
// three.
func TestLedgerAverageQualityWindow(t *testing.T) {
	t.Parallel()

	l := rmacs.NewLedger(30 * time.Second)
	base := time.Unix(0, 0)

	l.Ingest(5180, "A", 2, base.Add(100*time.Second))
	l.Ingest(5180, "B", 10, base.Add(105*time.Second))
	l.Ingest(5180, "C", 4, base.Add(160*time.Second))

	entries := l.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("Snapshot len = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.AverageQuality == nil {
		t.Fatal("AverageQuality = nil, want 4")
	}
	if *entry.AverageQuality != 4 {
		t.Errorf("AverageQuality = %v, want 4", *entry.AverageQuality)
	}
}

// TestLedgerAverageQualityLatestReportReplacesStale verifies that a
// device's newer report for a frequency overwrites its older one, so the
// average reflects only the latest reading rather than going to ⊥.
func TestLedgerAverageQualityLatestReportReplacesStale(t *testing.T) {
	t.Parallel()

	l := rmacs.NewLedger(30 * time.Second)
	base := time.Unix(0, 0)

	l.Ingest(5180, "A", 5, base)
	l.Ingest(5180, "A", 9, base.Add(200*time.Second))

	entries := l.Snapshot()
	if entries[0].AverageQuality == nil {
		t.Fatal("AverageQuality = nil, want 9 (latest report replaces stale one)")
	}
	if *entries[0].AverageQuality != 9 {
		t.Errorf("AverageQuality = %v, want 9", *entries[0].AverageQuality)
	}
}

// TestLedgerEmptyHasNoEntries verifies the empty-ledger boundary
// behavior: periodic broadcast logic elsewhere relies on
// Snapshot/Len returning zero values rather than erroring.
func TestLedgerEmptyHasNoEntries(t *testing.T) {
	t.Parallel()

	l := rmacs.NewLedger(30 * time.Second)
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
	if got := l.Snapshot(); len(got) != 0 {
		t.Errorf("Snapshot() = %v, want empty", got)
	}
	if got := l.SortedByQuality(); len(got) != 0 {
		t.Errorf("SortedByQuality() = %v, want empty", got)
	}
}

// TestLedgerSortedByQualityOrdersAscending verifies SortedByQuality
// ranks lower average_quality first (better), matching the ordering PFH
// depends on.
func TestLedgerSortedByQualityOrdersAscending(t *testing.T) {
	t.Parallel()

	l := rmacs.NewLedger(30 * time.Second)
	now := time.Unix(1000, 0)

	l.Ingest(5220, "A", 8, now)
	l.Ingest(5180, "A", 2, now)
	l.Ingest(5200, "A", 5, now)
	// The stale 5240 report is overwritten by the same device's fresh
	// one, leaving an average of 1: the best of the four.
	l.Ingest(5240, "A", 1, now.Add(-1*time.Hour))
	l.Ingest(5240, "A", 1, now)

	sorted := l.SortedByQuality()
	wantOrder := []int{5240, 5180, 5200, 5220}
	if len(sorted) != len(wantOrder) {
		t.Fatalf("len = %d, want %d", len(sorted), len(wantOrder))
	}
	for i, freq := range wantOrder {
		if sorted[i].Freq != freq {
			t.Errorf("sorted[%d].Freq = %d, want %d", i, sorted[i].Freq, freq)
		}
	}
}

// TestLedgerSnapshotIsIndependentCopy verifies mutating the map
// returned by Snapshot cannot corrupt the ledger's internal state.
func TestLedgerSnapshotIsIndependentCopy(t *testing.T) {
	t.Parallel()

	l := rmacs.NewLedger(30 * time.Second)
	l.Ingest(5180, "A", 2, time.Unix(0, 0))

	entries := l.Snapshot()
	entries[0].Nodes["B"] = rmacs.NodeQuality{Quality: 99}

	again := l.Snapshot()
	if _, ok := again[0].Nodes["B"]; ok {
		t.Fatal("mutation of Snapshot result leaked into ledger state")
	}
}
