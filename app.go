package main

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/odvcencio/scribe/assistant"
	"github.com/odvcencio/scribe/chat"
	"github.com/odvcencio/scribe/document"
	"github.com/odvcencio/scribe/mcptools"
	"github.com/odvcencio/scribe/relay"
	"github.com/odvcencio/scribe/storage"
	"github.com/odvcencio/scribe/web"
)

// scribeApp composes the document, assistant pipeline, transcript, storage,
// and upstream relay into one editing session. All document mutations funnel
// through the loop; the web and MCP surfaces only ever call the methods here.
type scribeApp struct {
	loop       *assistant.Loop
	doc        *document.Document
	store      *assistant.ContextStore
	applier    *assistant.Applier
	streamer   *assistant.Streamer
	guardian   *assistant.Guardian
	parser     *assistant.Parser
	channel    *assistant.Channel
	transcript *chat.Transcript
	upstream   relay.Completer
	db         *storage.Store
	docID      string
	createdAt  time.Time
	version    int
	srv        *web.Server
	log        commonlog.Logger

	// promptCache holds the composed document-context message, keyed on
	// title and word count so it is rebuilt only when either moves.
	promptCache *assistant.Cache[string]

	saveMu    sync.Mutex
	saveTimer *time.Timer
}

// persistDebounce coalesces bursts of mutations into one storage write.
const persistDebounce = 500 * time.Millisecond

// Bounds for the composed context-prompt cache.
const (
	promptCacheSize = 16
	promptCacheTTL  = 10 * time.Minute
)

func newScribeApp(db *storage.Store, upstream relay.Completer) *scribeApp {
	doc := document.New()
	store := assistant.NewContextStore()
	applier := assistant.NewApplier(doc, store)
	loop := assistant.NewLoop()

	app := &scribeApp{
		loop:       loop,
		doc:        doc,
		store:      store,
		applier:    applier,
		streamer:   assistant.NewStreamer(applier, loop.Defer),
		guardian:   assistant.NewGuardian(doc, loop.Defer),
		parser:     assistant.NewParser(),
		channel:    assistant.NewChannel(),
		transcript: chat.NewTranscript(),
		upstream:   upstream,
		db:         db,
		log:        commonlog.GetLogger("scribe"),

		promptCache: assistant.NewCache[string](promptCacheSize, promptCacheTTL),
	}

	app.channel.HandleEdit(app.onEditCommand)
	app.channel.HandleWrite(app.onWriteCommand)
	app.restore()
	return app
}

// restore loads the most recent document and its transcript, or starts a
// fresh one.
func (app *scribeApp) restore() {
	app.createdAt = time.Now().UTC()
	app.version = 1
	if app.db == nil {
		app.docID = storage.NewID()
		return
	}
	rec, err := app.db.LatestDocument()
	if err != nil {
		if err != storage.ErrDocumentNotFound {
			app.log.Errorf("loading document: %v", err)
		}
		app.docID = storage.NewID()
		return
	}
	app.docID = rec.ID
	app.createdAt = rec.CreatedAt
	app.version = rec.Version
	if err := app.doc.Deserialize(rec.Content); err != nil {
		app.log.Errorf("restoring document %s: %v", rec.ID, err)
	}
	app.applier.SetTitle(rec.Title)

	msgs, err := app.db.LoadMessages(rec.ID)
	if err != nil {
		app.log.Errorf("loading messages: %v", err)
		return
	}
	app.transcript.Replace(msgs)
}

func (app *scribeApp) close() {
	app.saveMu.Lock()
	if app.saveTimer != nil {
		app.saveTimer.Stop()
	}
	app.saveMu.Unlock()
	app.persist()
	app.loop.Close()
}

// schedulePersist arms a debounced save, replacing any pending one.
func (app *scribeApp) schedulePersist() {
	if app.db == nil {
		return
	}
	app.saveMu.Lock()
	defer app.saveMu.Unlock()
	if app.saveTimer != nil {
		app.saveTimer.Stop()
	}
	app.saveTimer = time.AfterFunc(persistDebounce, app.persist)
}

// persist writes the current document snapshot and transcript through to
// storage. Serialized by saveMu so a firing debounce timer and shutdown
// cannot interleave.
func (app *scribeApp) persist() {
	if app.db == nil {
		return
	}
	app.saveMu.Lock()
	defer app.saveMu.Unlock()
	var content, title, font string
	app.loop.DoWait(func() {
		var err error
		content, err = app.doc.Serialize()
		if err != nil {
			app.log.Errorf("serializing document: %v", err)
		}
		title = app.applier.Title()
		font = app.applier.Format().Font
	})
	err := app.db.SaveDocument(storage.DocumentRecord{
		ID:         app.docID,
		Title:      title,
		Content:    content,
		Font:       font,
		CreatedAt:  app.createdAt,
		ModifiedAt: time.Now().UTC(),
	})
	if err != nil {
		app.log.Errorf("saving document: %v", err)
	} else {
		app.version++
	}
	if err := app.db.SaveMessages(app.docID, app.transcript.Messages()); err != nil {
		app.log.Errorf("saving messages: %v", err)
	}
}

// broadcastContext pushes the committed context to connected clients.
func (app *scribeApp) broadcastContext() {
	if app.srv != nil {
		app.srv.Broadcast("contextChanged", app.store.Get())
	}
}

// runEdit applies an edit on the loop and publishes the result.
func (app *scribeApp) runEdit(oldText, newText string) error {
	var err error
	app.loop.DoWait(func() {
		err = app.applier.ApplyEdit(oldText, newText)
	})
	if err != nil {
		return err
	}
	app.broadcastContext()
	app.schedulePersist()
	return nil
}

// runWrite starts streaming write content into the document.
func (app *scribeApp) runWrite(content string) error {
	var err error
	app.loop.DoWait(func() {
		err = app.streamer.Start(content)
	})
	if err != nil {
		return err
	}
	app.broadcastContext()
	return nil
}

// onEditCommand handles an edit arriving over the command channel, reporting
// the outcome into the transcript.
func (app *scribeApp) onEditCommand(oldText, newText string) {
	if err := app.runEdit(oldText, newText); err != nil {
		app.transcript.AddSystem("Error: " + err.Error())
		return
	}
	app.transcript.AddSystem(assistant.Edit{OldText: oldText, NewText: newText}.Confirmation())
}

// onWriteCommand handles a write arriving over the command channel.
func (app *scribeApp) onWriteCommand(content string) {
	if err := app.runWrite(content); err != nil {
		app.transcript.AddSystem("Error: " + err.Error())
		return
	}
	app.transcript.AddSystem(assistant.Write{Content: content}.Confirmation())
}

func (app *scribeApp) actions() chat.Actions {
	return chat.Actions{
		Context: app.store.Get,
		Edit:    app.channel.DispatchEdit,
		Write:   app.channel.DispatchWrite,
	}
}

// --- web.Workspace ---

var _ web.Workspace = (*scribeApp)(nil)

func (app *scribeApp) LoadDocument() (string, string, error) {
	var content, title string
	var err error
	app.loop.DoWait(func() {
		content, err = app.doc.Serialize()
		title = app.applier.Title()
	})
	return content, title, err
}

func (app *scribeApp) SetContent(content string) error {
	var err error
	app.loop.DoWait(func() {
		if err = app.doc.Deserialize(content); err != nil {
			return
		}
		app.applier.Republish()
	})
	if err != nil {
		return err
	}
	app.schedulePersist()
	return nil
}

func (app *scribeApp) SetTitle(title string) {
	app.loop.DoWait(func() {
		app.applier.SetTitle(title)
	})
	app.broadcastContext()
	app.schedulePersist()
}

func (app *scribeApp) ApplyEdit(oldText, newText string) error {
	var err error
	app.loop.DoWait(func() {
		err = app.applier.ApplyEdit(oldText, newText)
	})
	if err != nil {
		return err
	}
	app.broadcastContext()
	app.schedulePersist()
	return nil
}

func (app *scribeApp) ApplyWrite(content string) error {
	var err error
	app.loop.DoWait(func() {
		err = app.applier.ApplyWrite(content)
	})
	if err != nil {
		return err
	}
	app.broadcastContext()
	app.schedulePersist()
	return nil
}

func (app *scribeApp) StreamWrite(content string) error {
	var err error
	app.loop.DoWait(func() {
		err = app.streamer.Start(content)
	})
	return err
}

func (app *scribeApp) CancelStream() {
	app.loop.Do(app.streamer.Cancel)
}

func (app *scribeApp) SelectionChange(sel *document.Selection) error {
	app.loop.Do(func() {
		if err := app.doc.SetSelection(sel); err != nil {
			// Stale paths from the browser are expected; drop them.
			app.log.Debugf("selection did not resolve: %v", err)
			return
		}
		app.guardian.OnSelectionChange()
	})
	return nil
}

func (app *scribeApp) FocusEditor() {
	app.loop.Do(app.guardian.OnFocus)
}

func (app *scribeApp) BlurEditor(focusInChat bool) bool {
	var suppress bool
	app.loop.DoWait(func() {
		suppress = app.guardian.OnBlur(focusInChat)
	})
	return suppress
}

// ChatSend runs one chat turn: slash commands are answered locally, anything
// else goes upstream with the document context attached, and commands
// embedded in the AI response are executed with their syntax rewritten to
// confirmations before the response is stored. Returns the messages added
// beyond the user's own.
func (app *scribeApp) ChatSend(ctx context.Context, message string) ([]chat.Message, error) {
	if strings.TrimSpace(message) == "" {
		return nil, nil
	}
	app.transcript.AddUser(message)
	before := len(app.transcript.Messages())

	if resp, handled := chat.Route(app.actions(), message); handled {
		app.transcript.AddAI(resp)
		app.schedulePersist()
		return app.transcript.Messages()[before:], nil
	}

	history := app.transcript.History()
	// The new user message already sits at the history tail; Complete appends
	// it itself. The document context rides behind the conversation.
	history = history[:len(history)-1]
	history = append(history, chat.HistoryItem{Role: "system", Content: app.contextPrompt()})
	resp, err := app.upstream.Complete(ctx, history, message)
	if err != nil {
		app.transcript.AddSystem("Error: " + err.Error())
		return app.transcript.Messages()[before:], nil
	}

	// Commands run before the response is stored so the transcript shows
	// each command's confirmation in place of its raw syntax, never both.
	var cmdErrs []error
	display := app.parser.Execute(resp, func(cmd assistant.Command) error {
		var err error
		switch c := cmd.(type) {
		case assistant.Edit:
			err = app.runEdit(c.OldText, c.NewText)
		case assistant.Write:
			err = app.runWrite(c.Content)
		}
		if err != nil {
			cmdErrs = append(cmdErrs, err)
		}
		return err
	})
	app.transcript.AddAI(display)
	for _, cerr := range cmdErrs {
		app.transcript.AddSystem("Error: " + cerr.Error())
	}
	app.schedulePersist()
	return app.transcript.Messages()[before:], nil
}

// contextPrompt composes the structured document-context message attached to
// every upstream request. The composed prompt is reused across turns until
// the title or word count changes.
func (app *scribeApp) contextPrompt() string {
	var key string
	app.loop.DoWait(func() {
		key = assistant.ContextKey(app.applier.Title(), app.doc.WordCount())
	})
	if prompt, ok := app.promptCache.Get(key); ok {
		return prompt
	}
	app.saveMu.Lock()
	version := app.version
	app.saveMu.Unlock()
	var payload assistant.Payload
	app.loop.DoWait(func() {
		payload = assistant.BuildPayload(app.doc, assistant.PayloadMeta{
			ID:           app.docID,
			Title:        app.applier.Title(),
			CreatedAt:    app.createdAt,
			LastModified: time.Now().UTC(),
			Version:      version,
		})
	})
	prompt := "Current document context:\n" + payload.JSON()
	app.promptCache.Set(key, prompt)
	return prompt
}

func (app *scribeApp) Context() assistant.Context {
	return app.store.Get()
}

func (app *scribeApp) Messages() []chat.Message {
	return app.transcript.Messages()
}

// --- mcptools.DocumentAccess ---

var _ mcptools.DocumentAccess = (*scribeApp)(nil)

func (app *scribeApp) PlainText() string {
	var text string
	app.loop.DoWait(func() {
		text = app.doc.PlainText()
	})
	return text
}

func (app *scribeApp) Serialized() (string, error) {
	var content string
	var err error
	app.loop.DoWait(func() {
		content, err = app.doc.Serialize()
	})
	return content, err
}

func (app *scribeApp) Title() string {
	var title string
	app.loop.DoWait(func() {
		title = app.applier.Title()
	})
	return title
}

func (app *scribeApp) WordCount() int {
	var count int
	app.loop.DoWait(func() {
		count = app.doc.WordCount()
	})
	return count
}

func (app *scribeApp) Search(query string) []mcptools.SearchResult {
	if query == "" {
		return nil
	}
	var results []mcptools.SearchResult
	app.loop.DoWait(func() {
		for _, leaf := range app.doc.Leaves() {
			from := 0
			for {
				idx := strings.Index(leaf.Text[from:], query)
				if idx < 0 {
					break
				}
				offset := from + idx
				results = append(results, mcptools.SearchResult{
					Block:   leaf.Path[0],
					Offset:  offset,
					Text:    query,
					Context: leaf.Text,
				})
				from = offset + len(query)
			}
		}
	})
	return results
}

func (app *scribeApp) ContextJSON() string {
	data, err := json.Marshal(app.store.Get())
	if err != nil {
		return "{}"
	}
	return string(data)
}
