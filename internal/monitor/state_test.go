package monitor

import "testing"

func TestTrackerFirstSampleNotReady(t *testing.T) {
	tr := newTracker()
	_, ready := tr.advance("c1", statsWith(10, 100))
	if ready {
		t.Fatal("first sample for a container should not be ready")
	}
}

func TestTrackerSecondSampleReady(t *testing.T) {
	tr := newTracker()
	tr.advance("c1", statsWith(10, 100))
	prev, ready := tr.advance("c1", statsWith(20, 200))
	if !ready {
		t.Fatal("second sample should be ready")
	}
	if prev.CPUTotalUsage != 10 {
		t.Errorf("prev.CPUTotalUsage = %d, want 10", prev.CPUTotalUsage)
	}
}

func TestTrackerPruneDropsMissingContainers(t *testing.T) {
	tr := newTracker()
	tr.advance("c1", statsWith(10, 100))
	tr.advance("c2", statsWith(10, 100))

	tr.prune(map[string]struct{}{"c1": {}})

	if _, ready := tr.advance("c2", statsWith(20, 200)); ready {
		t.Fatal("c2 should have been pruned and treated as a new container")
	}
	if _, ready := tr.advance("c1", statsWith(20, 200)); !ready {
		t.Fatal("c1 should have survived pruning")
	}
}
