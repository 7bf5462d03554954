package assistant

import (
	"strings"

	"github.com/odvcencio/scribe/document"
)

// Locate finds the target of an edit command: the minimal range covering the
// first occurrence of oldText in the document. If a live, non-collapsed
// selection contains oldText, only the selection is searched; otherwise all
// text leaves are scanned in document order and the first containing leaf
// wins. Matches never span run boundaries — text crossing a formatting
// boundary will not be found. Pure function: no mutation, no side effects.
func Locate(doc *document.Document, oldText string) (document.Range, bool) {
	if oldText == "" {
		return document.Range{}, false
	}

	if sel := doc.ActiveSelection(); sel != nil && !sel.Collapsed() && doc.SelectionValid(sel) {
		selText, err := doc.Text(sel.Range())
		if err == nil && strings.Contains(selText, oldText) {
			return locateWithin(doc, sel.Range(), oldText)
		}
	}

	for _, leaf := range doc.Leaves() {
		if idx := strings.Index(leaf.Text, oldText); idx >= 0 {
			return leafRange(leaf.Path, idx, len(oldText)), true
		}
	}
	return document.Range{}, false
}

// locateWithin searches only the leaf slices covered by the given range.
// A match that exists in the concatenated selection text but crosses a leaf
// boundary is not representable and reports no match.
func locateWithin(doc *document.Document, r document.Range, oldText string) (document.Range, bool) {
	for _, leaf := range doc.Leaves() {
		startC := document.ComparePoints(
			document.Point{Path: leaf.Path, Offset: len(leaf.Text)}, r.Start)
		endC := document.ComparePoints(document.Point{Path: leaf.Path}, r.End)
		if startC <= 0 || endC >= 0 {
			continue
		}

		lo, hi := 0, len(leaf.Text)
		if leaf.Path.Equal(r.Start.Path) {
			lo = r.Start.Offset
		}
		if leaf.Path.Equal(r.End.Path) {
			hi = r.End.Offset
		}
		if idx := strings.Index(leaf.Text[lo:hi], oldText); idx >= 0 {
			return leafRange(leaf.Path, lo+idx, len(oldText)), true
		}
	}
	return document.Range{}, false
}

func leafRange(p document.Path, offset, length int) document.Range {
	return document.Range{
		Start: document.Point{Path: p.Clone(), Offset: offset},
		End:   document.Point{Path: p.Clone(), Offset: offset + length},
	}
}
