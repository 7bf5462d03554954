package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/scribe/document"
)

func TestProject(t *testing.T) {
	d := document.FromBlocks(document.NewParagraph("five words sit right here"))
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	ctx := Project(d, "Notes", Format{Bold: true}, at)
	if ctx.TotalWords != 5 {
		t.Errorf("TotalWords = %d, want 5", ctx.TotalWords)
	}
	if ctx.DocumentTitle != "Notes" {
		t.Errorf("DocumentTitle = %q", ctx.DocumentTitle)
	}
	if !ctx.LastEdit.Equal(at) {
		t.Errorf("LastEdit = %v, want %v", ctx.LastEdit, at)
	}
	if !ctx.CurrentFormat.Bold {
		t.Error("format should carry through")
	}
	if !strings.Contains(ctx.FullContent, "five words sit right here") {
		t.Errorf("FullContent = %q", ctx.FullContent)
	}
}

func TestProjectIncludesSelection(t *testing.T) {
	d := document.FromBlocks(document.NewParagraph("pick this word out"))
	err := d.Select(document.Range{
		Start: document.Point{Path: document.Path{0, 0}, Offset: 5},
		End:   document.Point{Path: document.Path{0, 0}, Offset: 9},
	})
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}

	ctx := Project(d, "", Format{}, time.Now())
	if ctx.SelectedText != "this" {
		t.Errorf("SelectedText = %q, want %q", ctx.SelectedText, "this")
	}
	if ctx.CurrentParagraph != "pick this word out" {
		t.Errorf("CurrentParagraph = %q", ctx.CurrentParagraph)
	}
}

func TestBuildPayload(t *testing.T) {
	d := document.FromBlocks(
		document.Block{Type: document.Heading, Runs: []document.Run{{Text: "Trip Plan"}}},
		document.NewParagraph("We leave on Friday."),
		document.Block{Type: document.ListItem, Runs: []document.Run{{Text: "- pack the bags."}}},
	)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p := BuildPayload(d, PayloadMeta{
		ID:           "doc-1",
		Title:        "Trip Plan",
		CreatedAt:    created,
		LastModified: created.Add(time.Hour),
		Version:      3,
	})

	if p.Type != "document_data" || p.Version != "0.0.1" {
		t.Errorf("envelope = %s/%s", p.Type, p.Version)
	}
	if p.Metadata.CreatedAt != "2025-01-02T03:04:05Z" {
		t.Errorf("CreatedAt = %q", p.Metadata.CreatedAt)
	}
	if p.Metadata.DocumentVersion != "3" {
		t.Errorf("DocumentVersion = %q", p.Metadata.DocumentVersion)
	}
	if p.Content.Format != "text/plain" {
		t.Errorf("content format = %q", p.Content.Format)
	}
	if p.Structure.Sections != 1 {
		t.Errorf("sections = %d, want 1 for the heading", p.Structure.Sections)
	}
	if !p.Structure.HasLists {
		t.Error("list marker should be detected")
	}
	if !p.Structure.HasTitle {
		t.Error("short first block should count as a title")
	}
}

func TestBuildPayloadDefaultTitle(t *testing.T) {
	d := document.FromBlocks(document.NewParagraph("body"))
	p := BuildPayload(d, PayloadMeta{})
	if p.Metadata.Title != "Untitled Document" {
		t.Errorf("Title = %q", p.Metadata.Title)
	}
}

func TestTruncateMiddle(t *testing.T) {
	short := "fits fine"
	if got := truncateMiddle(short, 100); got != short {
		t.Errorf("short text changed: %q", got)
	}

	long := strings.Repeat("a", 10000) + strings.Repeat("z", 10000)
	got := truncateMiddle(long, maxPayloadContent)
	if len(got) >= len(long) {
		t.Error("oversized text should shrink")
	}
	if !strings.HasPrefix(got, "aaa") || !strings.HasSuffix(got, "zzz") {
		t.Error("head and tail must both survive")
	}
	if !strings.Contains(got, "content truncated") {
		t.Error("truncation marker missing")
	}
}

func TestContextStoreReplacesWholesale(t *testing.T) {
	s := NewContextStore()
	s.Set(Context{TotalWords: 3, DocumentTitle: "a"})
	s.Set(Context{TotalWords: 9})

	ctx := s.Get()
	if ctx.TotalWords != 9 || ctx.DocumentTitle != "" {
		t.Errorf("stale fields survived: %+v", ctx)
	}
}
