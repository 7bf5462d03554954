package assistant

import (
	"testing"
	"time"

	"github.com/odvcencio/scribe/document"
)

func selectWords(t *testing.T, d *document.Document, start, end int) {
	t.Helper()
	err := d.Select(document.Range{
		Start: document.Point{Path: document.Path{0, 0}, Offset: start},
		End:   document.Point{Path: document.Path{0, 0}, Offset: end},
	})
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
}

func TestGuardianCapturesSelection(t *testing.T) {
	d := document.FromBlocks(document.NewParagraph("some selected text"))
	g := NewGuardian(d, nil)

	selectWords(t, d, 5, 13)
	g.OnSelectionChange()

	saved := g.Saved()
	if saved == nil {
		t.Fatal("Saved() = nil, want the captured selection")
	}
	if saved.Anchor.Offset != 5 || saved.Focus.Offset != 13 {
		t.Errorf("saved = %+v", saved)
	}
}

func TestGuardianIgnoresCollapsedSelection(t *testing.T) {
	d := document.FromBlocks(document.NewParagraph("text"))
	g := NewGuardian(d, nil)

	selectWords(t, d, 2, 2)
	g.OnSelectionChange()

	if g.Saved() != nil {
		t.Error("collapsed selection should not be captured")
	}
}

func TestGuardianSavedIsDefensiveCopy(t *testing.T) {
	d := document.FromBlocks(document.NewParagraph("text here"))
	g := NewGuardian(d, nil)

	selectWords(t, d, 0, 4)
	g.OnSelectionChange()

	saved := g.Saved()
	saved.Anchor.Offset = 99
	if again := g.Saved(); again.Anchor.Offset != 0 {
		t.Error("mutating the returned selection must not affect the stored one")
	}
}

func TestGuardianThrottleCoalesces(t *testing.T) {
	d := document.FromBlocks(document.NewParagraph("drag selection target"))
	q := &tickQueue{}
	g := NewGuardian(d, q.schedule)

	clock := time.Unix(0, 0)
	g.now = func() time.Time { return clock }

	// First change captures immediately.
	selectWords(t, d, 0, 4)
	g.OnSelectionChange()

	// A burst within the window: no immediate capture, one trailing check.
	clock = clock.Add(10 * time.Millisecond)
	selectWords(t, d, 0, 10)
	g.OnSelectionChange()
	clock = clock.Add(10 * time.Millisecond)
	selectWords(t, d, 0, 14)
	g.OnSelectionChange()

	if got := g.Saved().Focus.Offset; got != 4 {
		t.Errorf("burst captured eagerly: saved focus = %d, want 4", got)
	}
	if len(q.fns) != 1 {
		t.Fatalf("scheduled %d trailing checks, want exactly 1", len(q.fns))
	}

	// The trailing check picks up the settled selection.
	clock = clock.Add(SelectionThrottle)
	q.drain()
	if got := g.Saved().Focus.Offset; got != 14 {
		t.Errorf("trailing capture saved focus = %d, want 14", got)
	}
}

func TestGuardianRestoresOnFocus(t *testing.T) {
	d := document.FromBlocks(document.NewParagraph("restore me"))
	g := NewGuardian(d, nil)

	selectWords(t, d, 0, 7)
	g.OnSelectionChange()
	d.ClearSelection()

	g.OnFocus()
	sel := d.ActiveSelection()
	if sel == nil {
		t.Fatal("selection should be restored on focus")
	}
	if sel.Anchor.Offset != 0 || sel.Focus.Offset != 7 {
		t.Errorf("restored selection = %+v", sel)
	}
}

func TestGuardianDiscardsStaleSaveSilently(t *testing.T) {
	d := document.FromBlocks(document.NewParagraph("about to change"))
	g := NewGuardian(d, nil)

	selectWords(t, d, 0, 15)
	g.OnSelectionChange()

	// Shift the block structure so the saved offsets no longer resolve.
	if _, err := d.InsertBlockAfter(-1); err != nil {
		t.Fatalf("InsertBlockAfter() error: %v", err)
	}
	d.ClearSelection()

	g.OnFocus()
	if d.ActiveSelection() != nil {
		t.Error("stale save must not be re-applied")
	}
	if g.Saved() != nil {
		t.Error("stale save should be discarded")
	}
}

func TestGuardianOnBlur(t *testing.T) {
	d := document.FromBlocks(document.NewParagraph("selected for chat"))
	g := NewGuardian(d, nil)

	if g.OnBlur(true) {
		t.Error("blur with no selection should not be suppressed")
	}

	selectWords(t, d, 0, 8)
	if !g.OnBlur(true) {
		t.Error("blur into the chat surface with a live selection should be suppressed")
	}
	if g.OnBlur(false) {
		t.Error("blur to anywhere else should never be suppressed")
	}
}
