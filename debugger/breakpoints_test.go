package debugger

import "testing"

func TestAddAndHitBreakpoint(t *testing.T) {
	bm := NewBreakpointManager()
	bp := bm.Add("define", false)
	if bp.ID != 1 || bp.Name != "define" {
		t.Fatalf("unexpected breakpoint: %+v", bp)
	}
	hit := bm.Hit("define")
	if hit == nil || hit.HitCount != 1 {
		t.Fatalf("expected a hit with count 1, got %+v", hit)
	}
	if bm.Count() != 1 {
		t.Fatalf("temporary=false breakpoint should survive a hit")
	}
}

func TestTemporaryBreakpointIsRemovedAfterHit(t *testing.T) {
	bm := NewBreakpointManager()
	bm.Add("foo", true)
	if bm.Hit("foo") == nil {
		t.Fatalf("expected a hit")
	}
	if bm.Count() != 0 {
		t.Fatalf("temporary breakpoint should be removed after its first hit")
	}
}

func TestDisabledBreakpointDoesNotHit(t *testing.T) {
	bm := NewBreakpointManager()
	bp := bm.Add("foo", false)
	if err := bm.SetEnabled(bp.ID, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if bm.Hit("foo") != nil {
		t.Fatalf("a disabled breakpoint should not hit")
	}
}

func TestDeleteByID(t *testing.T) {
	bm := NewBreakpointManager()
	bp := bm.Add("foo", false)
	if err := bm.Delete(bp.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if bm.Count() != 0 {
		t.Fatalf("expected 0 breakpoints after delete")
	}
	if err := bm.Delete(bp.ID); err == nil {
		t.Fatalf("expected an error deleting an already-removed breakpoint")
	}
}

func TestHitOnUnknownNameReturnsNil(t *testing.T) {
	bm := NewBreakpointManager()
	if bm.Hit("nosuch") != nil {
		t.Fatalf("expected nil for a name with no breakpoint")
	}
}
