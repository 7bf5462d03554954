package assistant

import (
	"time"

	"github.com/tliron/commonlog"

	"github.com/odvcencio/scribe/document"
)

// SelectionThrottle bounds how often selection-change notifications are
// processed; drag-selection fires them far faster than the saved selection
// needs to move.
const SelectionThrottle = 100 * time.Millisecond

// Guardian preserves the user's text selection across focus transitions to
// and from the chat surface. It keeps one last-known-good non-collapsed
// selection, revalidates it on refocus, and discards it silently when the
// document has changed underneath it.
type Guardian struct {
	doc      *document.Document
	interval time.Duration
	now      func() time.Time
	schedule func(time.Duration, func())
	log      commonlog.Logger

	saved   *document.Selection
	last    time.Time
	pending bool
}

// NewGuardian wires a guardian to the document. The schedule function defers
// the trailing re-check after a throttled burst; pass the serialized
// executor's deferral in production.
func NewGuardian(doc *document.Document, schedule func(time.Duration, func())) *Guardian {
	if schedule == nil {
		schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return &Guardian{
		doc:      doc,
		interval: SelectionThrottle,
		now:      time.Now,
		schedule: schedule,
		log:      commonlog.GetLogger("scribe.guardian"),
	}
}

// Saved returns the last-known-good selection, or nil.
func (g *Guardian) Saved() *document.Selection {
	if g.saved == nil {
		return nil
	}
	return g.saved.Clone()
}

// OnSelectionChange processes a selection-change notification. Calls within
// the throttle window are coalesced: one trailing re-check is scheduled so
// the final settled selection is always captured.
func (g *Guardian) OnSelectionChange() {
	now := g.now()
	if now.Sub(g.last) < g.interval {
		if !g.pending {
			g.pending = true
			g.schedule(g.interval, g.trailing)
		}
		return
	}
	g.last = now
	g.capture()
}

func (g *Guardian) trailing() {
	g.pending = false
	g.last = g.now()
	g.capture()
}

// capture stores a defensive copy of the selection when it covers at least
// one character. Collapsed cursors are not worth re-establishing.
func (g *Guardian) capture() {
	sel := g.doc.ActiveSelection()
	if sel != nil && !sel.Collapsed() {
		g.saved = sel.Clone()
	}
}

// OnFocus runs when the editing surface regains focus: the saved selection
// is re-applied if both endpoints still resolve, and discarded silently if
// the document structure changed underneath it.
func (g *Guardian) OnFocus() {
	if g.saved == nil {
		return
	}
	if !g.doc.SelectionValid(g.saved) {
		g.log.Debugf("saved selection no longer resolves, discarding")
		g.saved = nil
		return
	}
	if err := g.doc.SetSelection(g.saved); err != nil {
		g.log.Debugf("restoring selection: %v", err)
		g.saved = nil
	}
}

// OnBlur runs when the editing surface loses focus. When the newly focused
// element sits inside the chat surface and the current selection still
// resolves, the default selection-clearing is suppressed so a user can hand
// selected text to the assistant without losing it. Returns true when the
// blur should be suppressed and focus returned to the editor.
func (g *Guardian) OnBlur(focusInChat bool) bool {
	if !focusInChat {
		return false
	}
	sel := g.doc.ActiveSelection()
	return sel != nil && g.doc.SelectionValid(sel)
}
