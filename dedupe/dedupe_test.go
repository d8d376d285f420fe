package dedupe

import (
	"testing"

	"kangaroo/kmodel"
)

func TestCheckFirstObservationIsNew(t *testing.T) {
	var tr Tracker
	x := kmodel.Int{1, 2, 3, 4}
	d := kmodel.Dist{5, 6, 7}
	if tr.Check(42, x, d) {
		t.Fatalf("first observation of a kangaroo must never report as repeat")
	}
}

func TestCheckExactRepeatDetected(t *testing.T) {
	var tr Tracker
	x := kmodel.Int{1, 2, 3, 4}
	d := kmodel.Dist{5, 6, 7}
	tr.Check(42, x, d)
	if !tr.Check(42, x, d) {
		t.Fatalf("re-emitting the same (x, dist) for the same kIdx must be detected as dead branch")
	}
}

func TestCheckDifferentDistNotRepeat(t *testing.T) {
	var tr Tracker
	x := kmodel.Int{1, 2, 3, 4}
	d1 := kmodel.Dist{5, 6, 7}
	d2 := kmodel.Dist{5, 6, 8}
	tr.Check(42, x, d1)
	if tr.Check(42, x, d2) {
		t.Fatalf("a progressing walk (same x, different dist) must not be flagged as a repeat")
	}
}

func TestCheckDifferentKIdxIndependent(t *testing.T) {
	var tr Tracker
	x := kmodel.Int{1, 2, 3, 4}
	d := kmodel.Dist{5, 6, 7}
	tr.Check(42, x, d)
	if tr.Check(43, x, d) {
		t.Fatalf("distinct kangaroos must be tracked independently even with matching (x, dist), unless their hash ring slot collides")
	}
}

func TestReset(t *testing.T) {
	var tr Tracker
	x := kmodel.Int{1, 2, 3, 4}
	d := kmodel.Dist{5, 6, 7}
	tr.Check(42, x, d)
	tr.Reset(42)
	if tr.Check(42, x, d) {
		t.Fatalf("after Reset, the next observation for that kIdx must not be treated as a repeat")
	}
}
