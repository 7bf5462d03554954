package assistant

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/odvcencio/scribe/document"
)

// maxPayloadContent bounds the document text included in an AI context
// payload, to stay clear of upstream token limits.
const maxPayloadContent = 16000

// Format is the current formatting state applied to newly typed text. It is
// owned by the Applier and published through the context store, never hung
// off the document tree itself.
type Format struct {
	Bold      bool   `json:"isBold"`
	Italic    bool   `json:"isItalic"`
	Underline bool   `json:"isUnderline"`
	Font      string `json:"font"`
}

// Context is the derived, read-mostly snapshot of document state attached to
// every outbound AI request. It is recomputed wholesale after each committed
// mutation and never mutated in place.
type Context struct {
	SelectedText     string    `json:"selectedText"`
	CurrentParagraph string    `json:"currentParagraph"`
	TotalWords       int       `json:"totalWords"`
	FullContent      string    `json:"fullContent"`
	DocumentTitle    string    `json:"documentTitle"`
	LastEdit         time.Time `json:"lastEdit"`
	CurrentFormat    Format    `json:"currentFormat"`
}

// ContextStore holds the current Context. Only the mutation pipeline writes
// it; the chat and relay layers read it.
type ContextStore struct {
	mu      sync.RWMutex
	current Context
}

// NewContextStore returns an empty store.
func NewContextStore() *ContextStore {
	return &ContextStore{}
}

// Set replaces the stored context. Callers must only publish fully-committed
// state, strictly after the mutation that produced it.
func (s *ContextStore) Set(ctx Context) {
	s.mu.Lock()
	s.current = ctx
	s.mu.Unlock()
}

// Get returns the context as of the last commit.
func (s *ContextStore) Get() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Project derives a fresh Context from the document.
func Project(doc *document.Document, title string, format Format, now time.Time) Context {
	serialized, err := doc.Serialize()
	if err != nil {
		serialized = ""
	}
	return Context{
		SelectedText:     doc.SelectedText(),
		CurrentParagraph: doc.CurrentParagraph(),
		TotalWords:       doc.WordCount(),
		FullContent:      serialized,
		DocumentTitle:    title,
		LastEdit:         now,
		CurrentFormat:    format,
	}
}

// PayloadMeta carries document metadata into the structured AI payload.
type PayloadMeta struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	LastModified time.Time
	Version      int
}

// Payload is the structured document-context object sent with AI requests.
type Payload struct {
	Type     string `json:"type"`
	Version  string `json:"version"`
	Metadata struct {
		Title           string `json:"title"`
		ID              string `json:"id"`
		CreatedAt       string `json:"created_at"`
		UpdatedAt       string `json:"updated_at"`
		DocumentVersion string `json:"document_version"`
		TotalParagraphs int    `json:"total_paragraphs"`
		TotalWords      int    `json:"total_words"`
	} `json:"metadata"`
	Content struct {
		Text   string `json:"text"`
		Format string `json:"format"`
	} `json:"content"`
	UIState struct {
		CurrentSelection string `json:"current_selection,omitempty"`
	} `json:"ui_state"`
	Structure struct {
		Paragraphs int  `json:"paragraphs"`
		Sections   int  `json:"sections"`
		HasTitle   bool `json:"has_title"`
		HasLists   bool `json:"has_lists"`
	} `json:"structure"`
}

var listMarker = regexp.MustCompile(`^[•\-*\d]+[.)]?\s`)

// BuildPayload projects the document into the structured context payload.
func BuildPayload(doc *document.Document, meta PayloadMeta) Payload {
	var p Payload
	p.Type = "document_data"
	p.Version = "0.0.1"

	title := meta.Title
	if title == "" {
		title = "Untitled Document"
	}
	p.Metadata.Title = title
	p.Metadata.ID = meta.ID
	p.Metadata.CreatedAt = meta.CreatedAt.UTC().Format(time.RFC3339)
	p.Metadata.UpdatedAt = meta.LastModified.UTC().Format(time.RFC3339)
	p.Metadata.DocumentVersion = strconv.Itoa(meta.Version)

	paragraphs, sections, hasTitle, hasLists := analyzeStructure(doc)
	p.Metadata.TotalParagraphs = paragraphs
	p.Metadata.TotalWords = doc.WordCount()

	p.Content.Text = truncateMiddle(doc.PlainText(), maxPayloadContent)
	p.Content.Format = "text/plain"
	p.UIState.CurrentSelection = doc.SelectedText()
	p.Structure.Paragraphs = paragraphs
	p.Structure.Sections = sections
	p.Structure.HasTitle = hasTitle
	p.Structure.HasLists = hasLists
	return p
}

// JSON renders the payload for inclusion in an upstream request.
func (p Payload) JSON() string {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// analyzeStructure derives coarse structure facts used to give the model a
// sense of the document beyond its raw text.
func analyzeStructure(doc *document.Document) (paragraphs, sections int, hasTitle, hasLists bool) {
	blocks := doc.Blocks()
	for i := range blocks {
		text := blocks[i].Text()
		if blocks[i].Type == document.Paragraph || blocks[i].Type == "" {
			paragraphs++
		}
		if listMarker.MatchString(text) {
			hasLists = true
		}
		if looksLikeHeading(blocks[i].Type, text) {
			sections++
		}
	}
	for i := range blocks {
		text := strings.TrimSpace(blocks[i].Text())
		if text == "" {
			continue
		}
		// First non-empty block doubles as a title when short enough.
		hasTitle = len(text) < 70
		break
	}
	return paragraphs, sections, hasTitle, hasLists
}

// looksLikeHeading treats explicit headings and short unpunctuated blocks as
// section markers.
func looksLikeHeading(bt document.BlockType, text string) bool {
	if bt == document.Heading {
		return true
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) >= 100 {
		return false
	}
	return !strings.ContainsAny(string(trimmed[len(trimmed)-1]), ".!?;:")
}

// truncateMiddle keeps the head and tail of oversized text, cutting the
// middle so both the opening and the most recent content survive.
func truncateMiddle(text string, max int) string {
	if len(text) <= max {
		return text
	}
	half := max/2 - 100
	return text[:half] + "\n\n...[content truncated for brevity]...\n\n" + text[len(text)-half:]
}

