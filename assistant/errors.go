// Package assistant implements the document-mutation command protocol: it
// parses AI output into structured edit/write commands, locates their targets
// in the document tree, applies them without corrupting structure, streams
// write content incrementally, and keeps the AI-facing document context in
// sync with every committed mutation.
package assistant

import "errors"

var (
	// ErrNotFound indicates an edit command's old text was not found in any
	// document leaf.
	ErrNotFound = errors.New("assistant: text not found in document")

	// ErrSizeLimit indicates a write was refused because the serialized
	// document already exceeds the size guard.
	ErrSizeLimit = errors.New("assistant: document size limit exceeded")

	// ErrStreamActive indicates a command arrived while a streaming write
	// was still in flight. At most one stream runs at a time.
	ErrStreamActive = errors.New("assistant: streaming write already active")
)
