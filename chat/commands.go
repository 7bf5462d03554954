package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/odvcencio/scribe/assistant"
)

// Actions holds the callbacks slash commands act through. Commands never
// touch the document directly; edits and writes go over the command channel
// so they run on the serialized document flow.
type Actions struct {
	Context func() assistant.Context
	Edit    func(oldText, newText string)
	Write   func(content string)
}

// Command is one slash-command descriptor.
type Command struct {
	Name    string
	Summary string
	Run     func(a Actions, args string) string
}

// AllCommands returns the full slash-command table.
func AllCommands() []Command {
	return []Command{
		{Name: "/format", Summary: "Show current formatting", Run: runFormat},
		{Name: "/edit", Summary: "Edit selected text", Run: runEdit},
		{Name: "/write", Summary: "Write content at current cursor position", Run: runWrite},
		{Name: "/analyze", Summary: "Analyze document structure and content", Run: runAnalyze},
		{Name: "/help", Summary: "Show this help message", Run: runHelp},
	}
}

// Route dispatches a slash command. Returns the command's response and true,
// or "" and false when the input is not a known command and should go to the
// model instead.
func Route(a Actions, input string) (string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", false
	}
	name, args, _ := strings.Cut(input, " ")
	for _, cmd := range AllCommands() {
		if cmd.Name == name {
			return cmd.Run(a, args), true
		}
	}
	return "", false
}

func runFormat(a Actions, _ string) string {
	format := a.Context().CurrentFormat
	data, err := json.MarshalIndent(format, "", "  ")
	if err != nil {
		return "Current formatting unavailable."
	}
	return "Current formatting:\n" + string(data)
}

func runHelp(_ Actions, _ string) string {
	return `Available commands:
- /format: Show current formatting
- /edit: Edit selected text (e.g., /edit replace "old text" with "new text")
- /write: Write content at current cursor position (e.g., /write This is new text)
- /analyze: Analyze document structure and content
- /help: Show this help message`
}

func runAnalyze(a Actions, _ string) string {
	ctx := a.Context()
	title := ctx.DocumentTitle
	if title == "" {
		title = "Untitled Document"
	}
	weight := "normal"
	if ctx.CurrentFormat.Bold {
		weight = "bold"
	}
	return fmt.Sprintf(`Analysis of document:
- Total words: %d
- Current format: %s, %s
- Last edited: %s
- Document title: %s`,
		ctx.TotalWords, ctx.CurrentFormat.Font, weight,
		ctx.LastEdit.Format("1/2/2006, 3:04:05 PM"), title)
}

func runEdit(a Actions, args string) string {
	cmd, ok := assistant.ParseEditArgs(args)
	if !ok {
		return `Invalid edit command. Try something like:
- /edit replace "old text" with "new text"
- /edit "old text" to "new text"`
	}
	if a.Edit != nil {
		a.Edit(cmd.OldText, cmd.NewText)
	}
	return fmt.Sprintf("Editing text: replacing %q with %q", cmd.OldText, cmd.NewText)
}

func runWrite(a Actions, args string) string {
	if strings.TrimSpace(args) == "" {
		return "Invalid write command. Please provide the content to write."
	}
	if a.Write != nil {
		a.Write(args)
	}
	return "Content inserted at cursor position."
}
