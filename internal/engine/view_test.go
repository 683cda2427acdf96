package engine

import (
	"context"
	"testing"
)

func TestDiff_NoChange(t *testing.T) {
	e := newTestEngine(t, twoGroupDoc())
	v := e.View()

	if d := Diff(v, e.View()); !d.Empty() {
		t.Errorf("Diff() = %+v; want empty", d)
	}
}

func TestDiff_Placement(t *testing.T) {
	e := newTestEngine(t, twoGroupDoc())
	before := e.View()
	mustDrop(t, e, pending(2), slot(1, 1), OpPlaced)

	d := Diff(before, e.View())
	if d.Rebuild {
		t.Fatal("placement should not force a rebuild")
	}
	if len(d.Slots) != 1 || d.Slots[0].Slot != slot(1, 1) {
		t.Errorf("Slots = %+v; want only slot(1,1)", d.Slots)
	}
	if len(d.PoolRemoved) != 1 || d.PoolRemoved[0] != 2 {
		t.Errorf("PoolRemoved = %v; want [2]", d.PoolRemoved)
	}
	if len(d.PoolAdded) != 0 {
		t.Errorf("PoolAdded = %v; want none", d.PoolAdded)
	}
}

func TestDiff_Displacement(t *testing.T) {
	e := newTestEngine(t, twoGroupDoc())
	mustDrop(t, e, pending(1), slot(1, 0), OpPlaced)
	before := e.View()
	mustDrop(t, e, pending(3), slot(1, 0), OpDisplaced)

	d := Diff(before, e.View())
	if len(d.PoolAdded) != 1 || d.PoolAdded[0].ID != 1 {
		t.Errorf("PoolAdded = %+v; want item 1", d.PoolAdded)
	}
	if len(d.PoolRemoved) != 1 || d.PoolRemoved[0] != 3 {
		t.Errorf("PoolRemoved = %v; want [3]", d.PoolRemoved)
	}
	if len(d.Slots) != 1 || d.Slots[0].Occupant.ID != 3 {
		t.Errorf("Slots = %+v; want slot(1,0) holding 3", d.Slots)
	}
}

func TestDiff_Playback(t *testing.T) {
	e := newTestEngine(t, twoGroupDoc(), WithPlayer(&fakePlayer{}))
	before := e.View()
	if err := e.TogglePlayback(context.Background(), 4); err != nil {
		t.Fatal(err)
	}

	d := Diff(before, e.View())
	if !d.PlaybackChanged {
		t.Error("PlaybackChanged should be set")
	}
	if len(d.PoolChanged) != 1 || d.PoolChanged[0].ID != 4 || d.PoolChanged[0].Glyph != GlyphPause {
		t.Errorf("PoolChanged = %+v; want item 4 with pause glyph", d.PoolChanged)
	}
}

func TestDiff_PhaseAndReload(t *testing.T) {
	e := newTestEngine(t, twoGroupDoc())
	fillCorrectly(t, e)
	ready := e.View()
	if _, err := e.Validate(); err != nil {
		t.Fatal(err)
	}
	validated := e.View()

	d := Diff(ready, validated)
	if !d.PhaseChanged || !d.ScoreChanged {
		t.Errorf("Diff() = %+v; want phase and score changes", d)
	}
	if len(d.Slots) != 4 {
		t.Errorf("len(Slots) = %d; want 4 verdict updates", len(d.Slots))
	}

	if err := e.Reload(gridDoc(3, 1)); err != nil {
		t.Fatal(err)
	}
	if d := Diff(validated, e.View()); !d.Rebuild {
		t.Error("reload with a new layout should force a rebuild")
	}
}
