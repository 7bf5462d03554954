// Package mcptools exposes the document workspace to MCP clients as tools
// and resources, so external agents can read and mutate the document through
// the same command path the chat assistant uses.
package mcptools

import (
	"encoding/json"
	"fmt"
)

// DocumentAccess provides the interface for MCP tools to interact with the
// document workspace.
type DocumentAccess interface {
	// Document state
	PlainText() string
	Serialized() (string, error)
	Title() string
	WordCount() int

	// Mutations, routed through the serialized command path
	ApplyEdit(oldText, newText string) error
	ApplyWrite(content string) error

	// Search
	Search(query string) []SearchResult

	// Derived context
	ContextJSON() string
}

// SearchResult represents a match within the document.
type SearchResult struct {
	Block   int    `json:"block"`
	Offset  int    `json:"offset"`
	Text    string `json:"text"`
	Context string `json:"context"`
}

// ToolDef describes an MCP tool.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Handler     func(params json.RawMessage) (interface{}, error)
}

// ResourceDef describes an MCP resource.
type ResourceDef struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
	Handler     func(uri string) (string, error)
}

// Registry holds all MCP tools and resources for the workspace.
type Registry struct {
	doc       DocumentAccess
	tools     []ToolDef
	resources []ResourceDef
}

// NewRegistry creates a registry with all document tools and resources.
func NewRegistry(doc DocumentAccess) *Registry {
	r := &Registry{doc: doc}
	r.registerTools()
	r.registerResources()
	return r
}

// Tools returns all registered MCP tools.
func (r *Registry) Tools() []ToolDef {
	return r.tools
}

// Resources returns all registered MCP resources.
func (r *Registry) Resources() []ResourceDef {
	return r.resources
}

// HandleTool dispatches a tool call by name.
func (r *Registry) HandleTool(name string, params json.RawMessage) (interface{}, error) {
	for _, t := range r.tools {
		if t.Name == name {
			return t.Handler(params)
		}
	}
	return nil, fmt.Errorf("unknown tool: %s", name)
}

// HandleResource dispatches a resource read by URI.
func (r *Registry) HandleResource(uri string) (string, error) {
	for _, res := range r.resources {
		if res.URI == uri {
			return res.Handler(uri)
		}
	}
	return "", fmt.Errorf("unknown resource: %s", uri)
}

func (r *Registry) registerTools() {
	r.tools = []ToolDef{
		r.toolReadDocument(),
		r.toolGetContext(),
		r.toolEditText(),
		r.toolWriteText(),
		r.toolSearchText(),
	}
}

func (r *Registry) registerResources() {
	r.resources = []ResourceDef{
		r.resourceDocument(),
		r.resourceContext(),
	}
}

// --- Tool definitions ---

func (r *Registry) toolReadDocument() ToolDef {
	return ToolDef{
		Name:        "scribe_read_document",
		Description: "Reads the current document as plain text, along with its title and word count.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
		Handler: func(params json.RawMessage) (interface{}, error) {
			return map[string]interface{}{
				"title":      r.doc.Title(),
				"content":    r.doc.PlainText(),
				"totalWords": r.doc.WordCount(),
			}, nil
		},
	}
}

func (r *Registry) toolGetContext() ToolDef {
	return ToolDef{
		Name:        "scribe_get_context",
		Description: "Returns the derived document context: selection, current paragraph, word count, formatting state, and last edit time.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
		Handler: func(params json.RawMessage) (interface{}, error) {
			return json.RawMessage(r.doc.ContextJSON()), nil
		},
	}
}

func (r *Registry) toolEditText() ToolDef {
	return ToolDef{
		Name:        "scribe_edit_text",
		Description: "Replaces the first occurrence of oldText in the document with newText. The current selection is searched before the rest of the document.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"oldText": {
					"type": "string",
					"description": "The exact text to find."
				},
				"newText": {
					"type": "string",
					"description": "The replacement text."
				}
			},
			"required": ["oldText", "newText"]
		}`),
		Handler: func(params json.RawMessage) (interface{}, error) {
			var p struct {
				OldText string `json:"oldText"`
				NewText string `json:"newText"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, fmt.Errorf("invalid params: %w", err)
			}
			if p.OldText == "" {
				return nil, fmt.Errorf("oldText is required")
			}
			if err := r.doc.ApplyEdit(p.OldText, p.NewText); err != nil {
				return nil, fmt.Errorf("failed to apply edit: %w", err)
			}
			return map[string]interface{}{
				"status":  "edited",
				"oldText": p.OldText,
				"newText": p.NewText,
			}, nil
		},
	}
}

func (r *Registry) toolWriteText() ToolDef {
	return ToolDef{
		Name:        "scribe_write_text",
		Description: "Inserts content at the current insertion point. A live selection is replaced; with no selection the content goes to the end of the document.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"content": {
					"type": "string",
					"description": "The text to insert. May contain newlines to produce multiple paragraphs."
				}
			},
			"required": ["content"]
		}`),
		Handler: func(params json.RawMessage) (interface{}, error) {
			var p struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, fmt.Errorf("invalid params: %w", err)
			}
			if p.Content == "" {
				return nil, fmt.Errorf("content is required")
			}
			if err := r.doc.ApplyWrite(p.Content); err != nil {
				return nil, fmt.Errorf("failed to write content: %w", err)
			}
			return map[string]interface{}{
				"status": "written",
				"length": len(p.Content),
			}, nil
		},
	}
}

func (r *Registry) toolSearchText() ToolDef {
	return ToolDef{
		Name:        "scribe_search_text",
		Description: "Searches for a query string in the document and returns all matches with their positions and surrounding context.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "The search query string."
				}
			},
			"required": ["query"]
		}`),
		Handler: func(params json.RawMessage) (interface{}, error) {
			var p struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, fmt.Errorf("invalid params: %w", err)
			}
			if p.Query == "" {
				return nil, fmt.Errorf("query is required")
			}
			results := r.doc.Search(p.Query)
			return map[string]interface{}{
				"query":   p.Query,
				"matches": results,
				"count":   len(results),
			}, nil
		},
	}
}

// --- Resource definitions ---

func (r *Registry) resourceDocument() ResourceDef {
	return ResourceDef{
		URI:         "scribe://document",
		Name:        "Document",
		Description: "The current document as a serialized block tree.",
		MimeType:    "application/json",
		Handler: func(uri string) (string, error) {
			serialized, err := r.doc.Serialized()
			if err != nil {
				return "", fmt.Errorf("failed to serialize document: %w", err)
			}
			return serialized, nil
		},
	}
}

func (r *Registry) resourceContext() ResourceDef {
	return ResourceDef{
		URI:         "scribe://context",
		Name:        "Document Context",
		Description: "The derived document context attached to AI requests, as JSON.",
		MimeType:    "application/json",
		Handler: func(uri string) (string, error) {
			return r.doc.ContextJSON(), nil
		},
	}
}
