package assistant

import (
	"fmt"
	"regexp"
	"strings"
)

// Command markers recognized in raw model output.
const (
	EditMarker  = "/edit"
	WriteMarker = "/write"
)

// HelpText lists the command forms shown when a malformed command is
// received.
const HelpText = `Available commands:
- /edit replace "old text" with "new text"
- /edit "old text" to "new text"
- /write <content to insert at the cursor>`

// Command is a structured instruction extracted from AI-generated free text.
// Commands are immutable once parsed and live for a single AI turn.
type Command interface {
	// Confirmation returns the user-facing chat text that replaces the raw
	// command syntax in the transcript.
	Confirmation() string
	isCommand()
}

// Edit replaces the first occurrence of OldText in the document with NewText.
type Edit struct {
	OldText string
	NewText string
}

func (Edit) isCommand() {}

// Confirmation implements Command.
func (e Edit) Confirmation() string {
	return fmt.Sprintf("✓ Edited text: replaced %q with %q", e.OldText, e.NewText)
}

// Write inserts Content at the current cursor position.
type Write struct {
	Content string
}

func (Write) isCommand() {}

// Confirmation implements Command.
func (w Write) Confirmation() string {
	return fmt.Sprintf("✓ Added content: %q", preview(w.Content, 40))
}

// preview truncates s to max characters, appending an ellipsis when cut.
func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Edit argument patterns, in priority order. The first pattern that matches
// wins. Quotes may be single or double.
var editPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)replace\s+["'](.+?)["']\s+with\s+["'](.+?)["']`),
	regexp.MustCompile(`(?s)["'](.+?)["']\s+to\s+["'](.+?)["']`),
	regexp.MustCompile(`(?s)["'](.+?)["']\s+["'](.+?)["']`),
}

// Parser converts raw AI response text into structured commands. Malformed
// command syntax never produces an error; the text is simply left as prose.
type Parser struct {
	// CollapseRepeats enables the degeneracy guard that collapses a
	// maximal immediately-repeating run in write content to a single
	// occurrence. Models frequently emit accidentally duplicated content;
	// the collapse is a heuristic and can mangle deliberately repetitive
	// text, so it is switchable.
	CollapseRepeats bool
}

// NewParser returns a parser with the degeneracy guard enabled.
func NewParser() *Parser {
	return &Parser{CollapseRepeats: true}
}

// Parse scans raw model output for edit and write forms. Both may occur in
// one response: every line beginning with the edit marker yields at most one
// Edit command, and the first write marker captures all remaining text to
// the end of the response, including newlines.
func (p *Parser) Parse(raw string) []Command {
	var cmds []Command
	editRegion, writeTail := splitRegions(raw)

	for _, line := range strings.Split(editRegion, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, EditMarker) {
			continue
		}
		args := strings.TrimSpace(strings.TrimPrefix(line, EditMarker))
		if cmd, ok := ParseEditArgs(args); ok {
			cmds = append(cmds, cmd)
		}
	}

	if content := p.writeContent(writeTail); content != "" {
		cmds = append(cmds, Write{Content: content})
	}

	return cmds
}

// Execute scans raw like Parse, running each command through run as it is
// found. The returned text is what the transcript shows for the response:
// syntax of a command that ran successfully is replaced by its confirmation,
// a failed command keeps its raw line, and marker lines that parse to no
// command leave the prose intact with the help text appended once.
func (p *Parser) Execute(raw string, run func(Command) error) string {
	editRegion, writeTail := splitRegions(raw)
	malformed := false

	lines := strings.Split(editRegion, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, EditMarker) {
			continue
		}
		args := strings.TrimSpace(strings.TrimPrefix(trimmed, EditMarker))
		cmd, ok := ParseEditArgs(args)
		if !ok {
			malformed = true
			continue
		}
		if run(cmd) == nil {
			lines[i] = cmd.Confirmation()
		}
	}
	display := strings.Join(lines, "\n")

	if writeTail != "" {
		content := p.writeContent(writeTail)
		if content == "" {
			malformed = true
			display += writeTail
		} else if cmd := (Write{Content: content}); run(cmd) == nil {
			display += cmd.Confirmation()
		} else {
			display += writeTail
		}
	}

	if malformed {
		display = strings.TrimRight(display, "\n") + "\n\n" + HelpText
	}
	return strings.TrimSpace(display)
}

// splitRegions separates the edit-scanned prefix from the write tail. The
// tail starts at the first write marker at the beginning of a line and keeps
// the marker itself, so callers can reproduce the raw syntax verbatim.
func splitRegions(raw string) (editRegion, writeTail string) {
	if idx := writeMarkerIndex(raw); idx >= 0 {
		return raw[:idx], raw[idx:]
	}
	return raw, ""
}

// writeContent extracts and normalizes the write content from a tail
// returned by splitRegions. Returns "" when the tail holds no usable content.
func (p *Parser) writeContent(writeTail string) string {
	if writeTail == "" {
		return ""
	}
	content := strings.TrimPrefix(strings.TrimPrefix(writeTail, WriteMarker), " ")
	content = strings.TrimRight(content, "\n")
	if p.CollapseRepeats {
		content = collapseRepeats(content)
	}
	if strings.TrimSpace(content) == "" {
		return ""
	}
	return content
}

// ParseEditArgs matches edit arguments against the known patterns and
// returns the resulting command. Returns false when no pattern matches,
// which callers surface as plain prose plus the help text.
func ParseEditArgs(args string) (Edit, bool) {
	for _, re := range editPatterns {
		m := re.FindStringSubmatch(args)
		if m == nil {
			continue
		}
		if m[1] == "" || m[2] == "" {
			continue
		}
		return Edit{OldText: m[1], NewText: m[2]}, true
	}
	return Edit{}, false
}

// writeMarkerIndex finds the write marker at the start of a line, returning
// the byte index of the marker or -1.
func writeMarkerIndex(raw string) int {
	offset := 0
	for _, line := range strings.SplitAfter(raw, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, WriteMarker) {
			return offset + (len(line) - len(trimmed))
		}
		offset += len(line)
	}
	return -1
}

// collapseRepeats collapses every maximal immediately-repeating run
// (S)(S)+ to a single S, scanning left to right with the shortest repeating
// unit winning at each position. This mirrors a backreference substitution
// of (.+?)\1+ with the captured unit.
func collapseRepeats(s string) string {
	var sb strings.Builder
	i := 0
	for i < len(s) {
		collapsed := false
		for unitLen := 1; i+2*unitLen <= len(s); unitLen++ {
			unit := s[i : i+unitLen]
			j := i + unitLen
			for j+unitLen <= len(s) && s[j:j+unitLen] == unit {
				j += unitLen
			}
			if j > i+unitLen {
				sb.WriteString(unit)
				i = j
				collapsed = true
				break
			}
		}
		if !collapsed {
			sb.WriteByte(s[i])
			i++
		}
	}
	return sb.String()
}
