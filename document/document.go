// Package document implements the structured text store: an ordered tree of
// block nodes (paragraphs, headings, list items) containing inline text runs
// with formatting marks. Nodes are addressed by paths that are only valid
// against the current snapshot; every mutation bumps the revision counter and
// notifies subscribers.
package document

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrPathNotFound is returned when a path or point does not resolve against
// the current document snapshot.
var ErrPathNotFound = errors.New("document: path not found")

// BlockType identifies the structural kind of a top-level block node.
type BlockType string

const (
	Paragraph BlockType = "paragraph"
	Heading   BlockType = "heading"
	ListItem  BlockType = "list-item"
)

// Marks holds the formatting attributes attached to a text run.
type Marks struct {
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Font      string `json:"font,omitempty"`
}

// Run is the smallest addressable text-bearing node: a string payload plus
// the marks applied to it.
type Run struct {
	Text string `json:"text"`
	Marks
}

// Block is a top-level structural node owning an ordered sequence of runs.
// Every block has at least one run, which may carry an empty string.
type Block struct {
	Type  BlockType `json:"type"`
	Align string    `json:"align,omitempty"`
	Runs  []Run     `json:"children"`
}

// NewParagraph returns a paragraph block containing a single unformatted run.
func NewParagraph(text string) Block {
	return Block{Type: Paragraph, Runs: []Run{{Text: text}}}
}

// Text returns the concatenated text of all runs in the block.
func (b *Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Path locates a node within the document tree: [blockIndex] for a block,
// [blockIndex, runIndex] for a run leaf. Paths are not stable identifiers;
// they are valid only against the snapshot they were captured from.
type Path []int

// Equal reports whether two paths address the same node.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	return append(Path(nil), p...)
}

// compare orders paths lexicographically (document order).
func (p Path) compare(q Path) int {
	for i := 0; i < len(p) && i < len(q); i++ {
		if p[i] != q[i] {
			if p[i] < q[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(p) < len(q):
		return -1
	case len(p) > len(q):
		return 1
	}
	return 0
}

// Point addresses a position within a run leaf: the leaf's path plus a byte
// offset into its text.
type Point struct {
	Path   Path `json:"path"`
	Offset int  `json:"offset"`
}

// Clone returns an independent copy of the point.
func (p Point) Clone() Point {
	return Point{Path: p.Path.Clone(), Offset: p.Offset}
}

// ComparePoints orders two points in document order.
func ComparePoints(a, b Point) int {
	if c := a.Path.compare(b.Path); c != 0 {
		return c
	}
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}

// Range is a span between two points. Start and End are in document order
// once normalized via Ordered.
type Range struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Ordered returns the range with Start before or equal to End.
func (r Range) Ordered() Range {
	if ComparePoints(r.Start, r.End) > 0 {
		return Range{Start: r.End, End: r.Start}
	}
	return r
}

// Leaf pairs a run's text with the path addressing it, as produced by
// document-order enumeration.
type Leaf struct {
	Text string
	Path Path
}

// Document owns the block tree and the active selection. It is not safe for
// concurrent mutation; all writes must come from a single logical flow.
type Document struct {
	blocks    []Block
	selection *Selection
	revision  int
	subs      []func()
}

// New returns an empty document with no blocks.
func New() *Document {
	return &Document{}
}

// FromBlocks returns a document seeded with the given blocks. Blocks without
// runs are given a single empty run to preserve the block invariant.
func FromBlocks(blocks ...Block) *Document {
	d := &Document{blocks: blocks}
	for i := range d.blocks {
		if len(d.blocks[i].Runs) == 0 {
			d.blocks[i].Runs = []Run{{}}
		}
	}
	return d
}

// Subscribe registers a callback invoked after every committed mutation and
// every selection change. The notification carries no payload; subscribers
// re-read whatever state they need.
func (d *Document) Subscribe(fn func()) {
	d.subs = append(d.subs, fn)
}

func (d *Document) notify() {
	for _, fn := range d.subs {
		fn()
	}
}

func (d *Document) commit() {
	d.revision++
	d.notify()
}

// Revision returns a counter incremented on every committed mutation.
func (d *Document) Revision() int {
	return d.revision
}

// Blocks returns the current block sequence. The slice must not be mutated
// by callers.
func (d *Document) Blocks() []Block {
	return d.blocks
}

// Empty reports whether the document has no blocks at all.
func (d *Document) Empty() bool {
	return len(d.blocks) == 0
}

// HasPath reports whether the path resolves to an existing block or run.
func (d *Document) HasPath(p Path) bool {
	switch len(p) {
	case 1:
		return p[0] >= 0 && p[0] < len(d.blocks)
	case 2:
		if p[0] < 0 || p[0] >= len(d.blocks) {
			return false
		}
		return p[1] >= 0 && p[1] < len(d.blocks[p[0]].Runs)
	}
	return false
}

// Resolve reports whether the point addresses a valid offset within an
// existing run leaf.
func (d *Document) Resolve(pt Point) bool {
	if len(pt.Path) != 2 || !d.HasPath(pt.Path) {
		return false
	}
	text := d.blocks[pt.Path[0]].Runs[pt.Path[1]].Text
	return pt.Offset >= 0 && pt.Offset <= len(text)
}

// Leaves enumerates all run leaves in document order (pre-order over blocks,
// then runs).
func (d *Document) Leaves() []Leaf {
	var leaves []Leaf
	for i := range d.blocks {
		for j := range d.blocks[i].Runs {
			leaves = append(leaves, Leaf{
				Text: d.blocks[i].Runs[j].Text,
				Path: Path{i, j},
			})
		}
	}
	return leaves
}

// PlainText returns the document as plain text, blocks joined by newlines.
func (d *Document) PlainText() string {
	parts := make([]string, len(d.blocks))
	for i := range d.blocks {
		parts[i] = d.blocks[i].Text()
	}
	return strings.Join(parts, "\n")
}

// WordCount counts whitespace-separated words across all blocks.
func (d *Document) WordCount() int {
	count := 0
	for i := range d.blocks {
		count += len(strings.Fields(d.blocks[i].Text()))
	}
	return count
}

// Text returns the text covered by the range. A range spanning multiple
// blocks joins block boundaries with newlines, matching PlainText.
func (d *Document) Text(r Range) (string, error) {
	r = r.Ordered()
	if !d.Resolve(r.Start) || !d.Resolve(r.End) {
		return "", ErrPathNotFound
	}
	if r.Start.Path.Equal(r.End.Path) {
		text := d.blocks[r.Start.Path[0]].Runs[r.Start.Path[1]].Text
		return text[r.Start.Offset:r.End.Offset], nil
	}

	var sb strings.Builder
	prevBlock := r.Start.Path[0]
	for _, leaf := range d.Leaves() {
		if leaf.Path.compare(r.Start.Path) < 0 || leaf.Path.compare(r.End.Path) > 0 {
			continue
		}
		if leaf.Path[0] != prevBlock {
			sb.WriteString("\n")
			prevBlock = leaf.Path[0]
		}
		text := leaf.Text
		if leaf.Path.Equal(r.Start.Path) {
			text = text[r.Start.Offset:]
		} else if leaf.Path.Equal(r.End.Path) {
			text = text[:r.End.Offset]
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// End returns the point at the very end of the document, or false if the
// document has no blocks.
func (d *Document) End() (Point, bool) {
	if len(d.blocks) == 0 {
		return Point{}, false
	}
	bi := len(d.blocks) - 1
	ri := len(d.blocks[bi].Runs) - 1
	return Point{Path: Path{bi, ri}, Offset: len(d.blocks[bi].Runs[ri].Text)}, true
}

// InsertText splices text into the run leaf at the given point. A collapsed
// selection sitting at or after the insertion point within the same leaf is
// shifted right so the caret follows the inserted text.
func (d *Document) InsertText(at Point, text string) error {
	if !d.Resolve(at) {
		return ErrPathNotFound
	}
	if text == "" {
		return nil
	}
	run := &d.blocks[at.Path[0]].Runs[at.Path[1]]
	run.Text = run.Text[:at.Offset] + text + run.Text[at.Offset:]

	if sel := d.selection; sel != nil && sel.Collapsed() &&
		sel.Anchor.Path.Equal(at.Path) && sel.Anchor.Offset >= at.Offset {
		sel.Anchor.Offset += len(text)
		sel.Focus.Offset += len(text)
	}
	d.commit()
	return nil
}

// DeleteRange removes the text covered by the range. Runs and blocks spanned
// by the range are merged; the active selection collapses to the start of
// the deleted span.
func (d *Document) DeleteRange(r Range) error {
	r = r.Ordered()
	if !d.Resolve(r.Start) || !d.Resolve(r.End) {
		return ErrPathNotFound
	}
	si, sj := r.Start.Path[0], r.Start.Path[1]
	ei, ej := r.End.Path[0], r.End.Path[1]

	switch {
	case si == ei && sj == ej:
		run := &d.blocks[si].Runs[sj]
		run.Text = run.Text[:r.Start.Offset] + run.Text[r.End.Offset:]

	case si == ei:
		block := &d.blocks[si]
		head := block.Runs[sj]
		head.Text = head.Text[:r.Start.Offset]
		tail := block.Runs[ej]
		tail.Text = tail.Text[r.End.Offset:]
		runs := append([]Run{}, block.Runs[:sj]...)
		runs = append(runs, head, tail)
		runs = append(runs, block.Runs[ej+1:]...)
		block.Runs = normalizeRuns(runs)

	default:
		start := d.blocks[si]
		end := d.blocks[ei]
		head := start.Runs[sj]
		head.Text = head.Text[:r.Start.Offset]
		tail := end.Runs[ej]
		tail.Text = tail.Text[r.End.Offset:]
		runs := append([]Run{}, start.Runs[:sj]...)
		runs = append(runs, head, tail)
		runs = append(runs, end.Runs[ej+1:]...)
		merged := Block{Type: start.Type, Align: start.Align, Runs: normalizeRuns(runs)}
		blocks := append([]Block{}, d.blocks[:si]...)
		blocks = append(blocks, merged)
		blocks = append(blocks, d.blocks[ei+1:]...)
		d.blocks = blocks
	}

	start := Point{Path: Path{si, sj}, Offset: r.Start.Offset}
	if !d.Resolve(start) {
		// The start run was dropped during normalization; clamp to the
		// block's last surviving run.
		runs := d.blocks[si].Runs
		start = Point{Path: Path{si, len(runs) - 1}, Offset: len(runs[len(runs)-1].Text)}
	}
	d.selection = &Selection{Anchor: start.Clone(), Focus: start.Clone()}
	d.commit()
	return nil
}

// normalizeRuns drops empty runs but keeps at least one so the block
// invariant holds.
func normalizeRuns(runs []Run) []Run {
	out := runs[:0]
	for _, r := range runs {
		if r.Text != "" {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		out = append(out, Run{})
	}
	return out
}

// InsertBlockAfter inserts an empty paragraph after the block at index i
// (i == -1 inserts at the front) and returns the point at the start of its
// run.
func (d *Document) InsertBlockAfter(i int) (Point, error) {
	if i < -1 || i >= len(d.blocks) {
		return Point{}, ErrPathNotFound
	}
	blocks := append([]Block{}, d.blocks[:i+1]...)
	blocks = append(blocks, NewParagraph(""))
	blocks = append(blocks, d.blocks[i+1:]...)
	d.blocks = blocks
	d.commit()
	return Point{Path: Path{i + 1, 0}}, nil
}

// SplitBlock splits the block containing the point in two: text before the
// point stays where it is, text at and after it moves into a new block of the
// same type directly below. Returns the point at the start of the new block.
func (d *Document) SplitBlock(at Point) (Point, error) {
	if !d.Resolve(at) {
		return Point{}, ErrPathNotFound
	}
	bi, ri := at.Path[0], at.Path[1]
	block := d.blocks[bi]
	run := block.Runs[ri]

	headRun := run
	headRun.Text = run.Text[:at.Offset]
	headRuns := append([]Run{}, block.Runs[:ri]...)
	headRuns = append(headRuns, headRun)

	tailRun := run
	tailRun.Text = run.Text[at.Offset:]
	tailRuns := append([]Run{tailRun}, block.Runs[ri+1:]...)

	head := Block{Type: block.Type, Align: block.Align, Runs: normalizeRuns(headRuns)}
	tail := Block{Type: block.Type, Align: block.Align, Runs: normalizeRuns(tailRuns)}

	blocks := append([]Block{}, d.blocks[:bi]...)
	blocks = append(blocks, head, tail)
	blocks = append(blocks, d.blocks[bi+1:]...)
	d.blocks = blocks
	d.commit()
	return Point{Path: Path{bi + 1, 0}}, nil
}

// AppendBlock adds a block at the end of the document and returns its index.
// Blocks without runs are given a single empty run.
func (d *Document) AppendBlock(b Block) int {
	if len(b.Runs) == 0 {
		b.Runs = []Run{{}}
	}
	d.blocks = append(d.blocks, b)
	d.commit()
	return len(d.blocks) - 1
}

// Serialize returns the document's JSON snapshot, the same shape consumed by
// the browser editing surface.
func (d *Document) Serialize() (string, error) {
	data, err := json.Marshal(d.blocks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Deserialize replaces the document contents with the given JSON snapshot.
func (d *Document) Deserialize(data string) error {
	var blocks []Block
	if err := json.Unmarshal([]byte(data), &blocks); err != nil {
		return err
	}
	for i := range blocks {
		if len(blocks[i].Runs) == 0 {
			blocks[i].Runs = []Run{{}}
		}
	}
	d.blocks = blocks
	d.selection = nil
	d.commit()
	return nil
}
