package assistant

import (
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/odvcencio/scribe/document"
)

// TickInterval is the pause between streamed token insertions, measured from
// the completion of the previous tick.
const TickInterval = 20 * time.Millisecond

// StreamState tracks a streaming session's lifecycle.
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamActive
	StreamCancelled
)

// Streamer applies write content incrementally, one token per tick, to
// produce a visible typing effect without blocking the event flow. Each tick
// does O(1) work. At most one stream runs at a time.
//
// User edits concurrent with an active stream are not locked out: the
// insertion cursor can go stale if the user mutates the surrounding text,
// in which case the stream cancels itself rather than corrupting structure.
type Streamer struct {
	applier  *Applier
	doc      *document.Document
	interval time.Duration
	schedule func(time.Duration, func())
	log      commonlog.Logger

	state  StreamState
	lines  [][]string
	line   int
	token  int
	cursor document.Point
}

// NewStreamer returns a streamer pacing insertions with real timers. The
// schedule function hands each tick back to the caller's serialized
// executor; pass the loop's deferral so ticks never race other mutations.
func NewStreamer(applier *Applier, schedule func(time.Duration, func())) *Streamer {
	if schedule == nil {
		schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return &Streamer{
		applier:  applier,
		doc:      applier.doc,
		interval: TickInterval,
		schedule: schedule,
		log:      commonlog.GetLogger("scribe.stream"),
	}
}

// State returns the current lifecycle state.
func (s *Streamer) State() StreamState {
	return s.state
}

// Active reports whether a stream is in flight.
func (s *Streamer) Active() bool {
	return s.state == StreamActive
}

// Start begins streaming content into the document. The pre-insertion
// normalization matches a plain write: a live selection is replaced and a
// valid insertion point is guaranteed. Returns ErrStreamActive when a
// session is already running and ErrSizeLimit when the size guard trips.
func (s *Streamer) Start(content string) error {
	if s.state == StreamActive {
		return ErrStreamActive
	}
	if content == "" {
		return nil
	}
	if err := s.applier.checkSize(); err != nil {
		return err
	}
	at, err := s.applier.prepareInsertion()
	if err != nil {
		return err
	}

	rawLines := strings.Split(content, "\n")
	s.lines = make([][]string, len(rawLines))
	for i, line := range rawLines {
		s.lines[i] = tokenizeLine(line)
	}
	s.line = 0
	s.token = 0
	s.cursor = at
	s.state = StreamActive
	s.schedule(s.interval, s.tick)
	return nil
}

// Cancel stops an active stream. Already-inserted content stays in the
// document; the context is republished so readers see the partial result.
func (s *Streamer) Cancel() {
	if s.state != StreamActive {
		return
	}
	s.state = StreamCancelled
	s.applier.Republish()
}

// tick inserts exactly one token, or advances the line cursor, then re-arms
// the timer. The final tick transitions back to Idle and republishes the
// derived context.
func (s *Streamer) tick() {
	if s.state != StreamActive {
		return
	}

	if s.line >= len(s.lines) {
		s.finish()
		return
	}

	if s.token >= len(s.lines[s.line]) {
		s.line++
		s.token = 0
		if s.line >= len(s.lines) {
			s.finish()
			return
		}
		// Splitting at the cursor keeps any text after the insertion point
		// below the streamed lines instead of stranding it above them.
		at, err := s.doc.SplitBlock(s.cursor)
		if err != nil {
			s.fail(err)
			return
		}
		s.cursor = at
		s.schedule(s.interval, s.tick)
		return
	}

	if err := s.applier.checkSize(); err != nil {
		s.fail(err)
		return
	}

	tok := s.lines[s.line][s.token]
	if err := s.doc.InsertText(s.cursor, tok); err != nil {
		s.fail(err)
		return
	}
	s.cursor.Offset += len(tok)
	s.token++
	s.schedule(s.interval, s.tick)
}

func (s *Streamer) finish() {
	s.state = StreamIdle
	s.applier.Republish()
}

// fail cancels the stream on a stale cursor or size-guard trip, keeping
// whatever was inserted so far.
func (s *Streamer) fail(err error) {
	s.log.Infof("stream cancelled: %v", err)
	s.state = StreamCancelled
	s.applier.Republish()
}

// tokenizeLine splits a line into alternating runs of non-space and space
// characters. Both kinds are inserted verbatim so original spacing survives.
func tokenizeLine(line string) []string {
	var tokens []string
	i := 0
	for i < len(line) {
		j := i
		if isSpace(line[i]) {
			for j < len(line) && isSpace(line[j]) {
				j++
			}
		} else {
			for j < len(line) && !isSpace(line[j]) {
				j++
			}
		}
		tokens = append(tokens, line[i:j])
		i = j
	}
	return tokens
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}
