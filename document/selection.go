package document

// Selection is an anchor/focus point pair. Both endpoints must resolve
// against the current snapshot; a selection captured against an older
// snapshot may be stale and must be revalidated before use.
type Selection struct {
	Anchor Point `json:"anchor"`
	Focus  Point `json:"focus"`
}

// Collapsed reports whether the selection covers no characters.
func (s *Selection) Collapsed() bool {
	return s.Anchor.Path.Equal(s.Focus.Path) && s.Anchor.Offset == s.Focus.Offset
}

// Range returns the selection's span in document order.
func (s *Selection) Range() Range {
	return Range{Start: s.Anchor, End: s.Focus}.Ordered()
}

// Clone returns a defensive deep copy, safe to hold across later mutations.
func (s *Selection) Clone() *Selection {
	return &Selection{Anchor: s.Anchor.Clone(), Focus: s.Focus.Clone()}
}

// Select sets the active selection to cover the given range.
func (d *Document) Select(r Range) error {
	r = r.Ordered()
	if !d.Resolve(r.Start) || !d.Resolve(r.End) {
		return ErrPathNotFound
	}
	d.selection = &Selection{Anchor: r.Start.Clone(), Focus: r.End.Clone()}
	d.notify()
	return nil
}

// SetSelection replaces the active selection. A nil selection clears it.
// Returns ErrPathNotFound if either endpoint does not resolve.
func (d *Document) SetSelection(sel *Selection) error {
	if sel == nil {
		d.selection = nil
		d.notify()
		return nil
	}
	if !d.Resolve(sel.Anchor) || !d.Resolve(sel.Focus) {
		return ErrPathNotFound
	}
	d.selection = sel.Clone()
	d.notify()
	return nil
}

// ClearSelection drops the active selection.
func (d *Document) ClearSelection() {
	d.selection = nil
	d.notify()
}

// ActiveSelection returns a copy of the current selection, or nil if there
// is none.
func (d *Document) ActiveSelection() *Selection {
	if d.selection == nil {
		return nil
	}
	return d.selection.Clone()
}

// SelectionValid reports whether the given selection still resolves against
// the current snapshot.
func (d *Document) SelectionValid(sel *Selection) bool {
	return sel != nil && d.Resolve(sel.Anchor) && d.Resolve(sel.Focus)
}

// SelectedText returns the text covered by the active selection, or "" when
// the selection is missing, collapsed, or stale.
func (d *Document) SelectedText() string {
	sel := d.selection
	if sel == nil || sel.Collapsed() || !d.SelectionValid(sel) {
		return ""
	}
	text, err := d.Text(sel.Range())
	if err != nil {
		return ""
	}
	return text
}

// CurrentParagraph returns the full text of the block containing the
// selection anchor, or "" when there is no resolvable selection.
func (d *Document) CurrentParagraph() string {
	sel := d.selection
	if sel == nil || !d.Resolve(sel.Anchor) {
		return ""
	}
	return d.blocks[sel.Anchor.Path[0]].Text()
}
