package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/soreine/mentis/internal/engine"
	"github.com/soreine/mentis/internal/index"
	"github.com/soreine/mentis/internal/testutil"
)

func testServer(t *testing.T) (*Server, *engine.Engine, index.Store) {
	t.Helper()
	db := testutil.TestDB(t)
	eng := engine.New(db, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return New(eng), eng, db
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so we call the
	// handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "list_tags":
		result, err = srv.listTags(ctx, req)
	case "records_by_tag":
		result, err = srv.recordsByTag(ctx, req)
	case "outgoing_references":
		result, err = srv.outgoingReferences(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func seed(t *testing.T, eng *engine.Engine, db index.Store) (target, src index.Record) {
	t.Helper()
	ctx := context.Background()
	target, err := db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "Project Plan"})
	if err != nil {
		t.Fatal(err)
	}
	src, err = db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "Daily"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.OnContentCommitted(ctx, src.ID, "u1", `[[Project Plan]] and [[Ghost]] #urgent`); err != nil {
		t.Fatal(err)
	}
	return target, src
}

func TestGetBacklinks(t *testing.T) {
	srv, eng, db := testServer(t)
	target, src := seed(t, eng, db)

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"record": target.ID})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), src.ID) {
		t.Errorf("result = %q, want it to mention %s", resultText(r), src.ID)
	}
}

func TestGetBacklinks_NoTarget(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_backlinks", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing target")
	}
}

func TestGetBacklinks_Empty(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"date": "2025-03-10"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if resultText(r) != "no backlinks found" {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestListTags(t *testing.T) {
	srv, eng, db := testServer(t)
	seed(t, eng, db)

	r := callTool(t, srv, "list_tags", map[string]interface{}{"scope": "u1"})
	if !strings.Contains(resultText(r), "urgent") {
		t.Errorf("result = %q, want urgent", resultText(r))
	}

	r = callTool(t, srv, "list_tags", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing scope")
	}
}

func TestRecordsByTag(t *testing.T) {
	srv, eng, db := testServer(t)
	_, src := seed(t, eng, db)

	// Leading # is accepted and stripped.
	r := callTool(t, srv, "records_by_tag", map[string]interface{}{"scope": "u1", "tag": "#urgent"})
	if resultText(r) != src.ID {
		t.Errorf("result = %q, want %s", resultText(r), src.ID)
	}

	r = callTool(t, srv, "records_by_tag", map[string]interface{}{"scope": "u1", "tag": "nope"})
	if resultText(r) != "no records found" {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestOutgoingReferences(t *testing.T) {
	srv, eng, db := testServer(t)
	_, src := seed(t, eng, db)

	r := callTool(t, srv, "outgoing_references", map[string]interface{}{"source": src.ID})
	text := resultText(r)
	if !strings.Contains(text, "ghost") || !strings.Contains(text, `"missing": true`) {
		t.Errorf("result = %q, want the dangling ref flagged", text)
	}

	r = callTool(t, srv, "outgoing_references", map[string]interface{}{"source": "nope"})
	if resultText(r) != "no outgoing references" {
		t.Errorf("result = %q", resultText(r))
	}
}
