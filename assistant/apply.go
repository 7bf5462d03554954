package assistant

import (
	"time"

	"github.com/tliron/commonlog"

	"github.com/odvcencio/scribe/document"
)

// SizeLimit is the upper bound on the serialized document, in characters.
// Unranked model output could otherwise grow the document without bound
// through repeated write commands.
const SizeLimit = 1000

// Applier executes located edit and write commands against the document and
// republishes the derived context after every committed mutation. It owns
// the current formatting state and the document title.
type Applier struct {
	doc    *document.Document
	store  *ContextStore
	format Format
	title  string
	now    func() time.Time
	log    commonlog.Logger
}

// NewApplier wires an applier to the document and context store.
func NewApplier(doc *document.Document, store *ContextStore) *Applier {
	return &Applier{
		doc:   doc,
		store: store,
		now:   time.Now,
		log:   commonlog.GetLogger("scribe.assistant"),
	}
}

// SetTitle updates the document title carried in the derived context.
func (a *Applier) SetTitle(title string) {
	a.title = title
	a.Republish()
}

// Title returns the current document title.
func (a *Applier) Title() string {
	return a.title
}

// SetFormat updates the current formatting state.
func (a *Applier) SetFormat(f Format) {
	a.format = f
	a.Republish()
}

// Format returns the current formatting state.
func (a *Applier) Format() Format {
	return a.format
}

// ApplyEdit replaces the first occurrence of oldText with newText. The
// replacement is atomic from the caller's perspective: either the full span
// is replaced or nothing changes. Returns ErrNotFound when oldText does not
// occur in any leaf. Replacing text with itself is a no-op.
func (a *Applier) ApplyEdit(oldText, newText string) error {
	if oldText == newText {
		return nil
	}
	r, ok := Locate(a.doc, oldText)
	if !ok {
		return ErrNotFound
	}
	if err := a.doc.Select(r); err != nil {
		return err
	}
	if err := a.doc.DeleteRange(r); err != nil {
		return err
	}
	if newText != "" {
		if err := a.doc.InsertText(r.Start, newText); err != nil {
			return err
		}
	}
	a.Republish()
	return nil
}

// ApplyWrite inserts content at the current insertion point as a single
// operation: a live non-collapsed selection is replaced, an empty document
// gains a paragraph to insert into, and with no selection at all the content
// goes to the end of the document. Returns ErrSizeLimit without mutating
// when the serialized document already exceeds the guard.
func (a *Applier) ApplyWrite(content string) error {
	if content == "" {
		return nil
	}
	if err := a.checkSize(); err != nil {
		return err
	}
	at, err := a.prepareInsertion()
	if err != nil {
		return err
	}
	if err := a.doc.InsertText(at, content); err != nil {
		return err
	}
	a.Republish()
	return nil
}

// prepareInsertion normalizes the document for a write: deletes a live
// non-collapsed selection (replace-selection semantics), treats a stale
// selection as no selection at all, and guarantees a valid insertion point.
func (a *Applier) prepareInsertion() (document.Point, error) {
	sel := a.doc.ActiveSelection()
	if sel != nil && !a.doc.SelectionValid(sel) {
		// The document changed underneath the selection during the AI
		// round-trip. Expected condition, not an error.
		a.log.Debugf("stale selection dropped: %+v", sel)
		a.doc.ClearSelection()
		sel = nil
	}
	if sel != nil && !sel.Collapsed() {
		if err := a.doc.DeleteRange(sel.Range()); err != nil {
			return document.Point{}, err
		}
		sel = a.doc.ActiveSelection()
	}
	if sel != nil {
		return sel.Anchor, nil
	}
	if a.doc.Empty() {
		a.doc.AppendBlock(document.NewParagraph(""))
	}
	at, _ := a.doc.End()
	return at, nil
}

// checkSize refuses writes once the serialized document exceeds SizeLimit.
func (a *Applier) checkSize() error {
	serialized, err := a.doc.Serialize()
	if err != nil {
		return err
	}
	if len(serialized) > SizeLimit {
		a.log.Infof("write refused: document size %d exceeds limit %d", len(serialized), SizeLimit)
		return ErrSizeLimit
	}
	return nil
}

// Republish recomputes the derived context from committed state and replaces
// it wholesale. Downstream AI turns only ever observe this committed view.
func (a *Applier) Republish() {
	a.store.Set(Project(a.doc, a.title, a.format, a.now()))
}
