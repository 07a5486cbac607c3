package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/annota/internal/annotationservice"
	"github.com/starford/annota/internal/models"
	"github.com/starford/annota/internal/testutil"
)

func testServer(t *testing.T) (*Server, *annotationservice.Service) {
	t.Helper()
	svc := testutil.TestService(t)
	return New(svc, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called
	// directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_annotations":     srv.listAnnotations,
		"get_annotation":       srv.getAnnotation,
		"annotations_at":       srv.annotationsAt,
		"create_annotation":    srv.createAnnotation,
		"delete_annotation":    srv.deleteAnnotation,
		"merge_annotations":    srv.mergeAnnotations,
		"split_annotation":     srv.splitAnnotation,
		"undo":                 srv.undo,
		"redo":                 srv.redo,
		"list_layers":          srv.listLayers,
		"set_layer_visibility": srv.setLayerVisibility,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
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

func TestToolsRegistered(t *testing.T) {
	srv, _ := testServer(t)
	tools := srv.MCPServer().ListTools()
	for _, name := range []string{
		"list_annotations", "get_annotation", "annotations_at", "create_annotation",
		"delete_annotation", "merge_annotations", "split_annotation", "undo", "redo",
		"list_layers", "set_layer_visibility",
	} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestCreateAndGetAnnotation(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_annotation", map[string]any{
		"annotation": `{"shape": {"type": "rectangle", "x": 0, "y": 0, "width": 4, "height": 4}}`,
	})
	if text := resultText(r); text != "created: id-1" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "get_annotation", map[string]any{"id": "id-1"})
	var a models.Annotation
	if err := json.Unmarshal([]byte(resultText(r)), &a); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	if a.Kind() != models.KindRectangle {
		t.Errorf("kind = %s", a.Kind())
	}
}

func TestCreateAnnotationInvalid(t *testing.T) {
	srv, _ := testServer(t)
	for _, raw := range []string{`{`, `{"shape": {"type": "blob"}}`, `{"id": "x"}`} {
		r := callTool(t, srv, "create_annotation", map[string]any{"annotation": raw})
		if !r.IsError {
			t.Errorf("expected error for %s", raw)
		}
	}
}

func TestGetAnnotationMissing(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "get_annotation", map[string]any{"id": "nope"}); !r.IsError {
		t.Error("expected error for missing annotation")
	}
	if r := callTool(t, srv, "get_annotation", map[string]any{}); !r.IsError {
		t.Error("expected error for missing id argument")
	}
}

func TestAnnotationsAt(t *testing.T) {
	srv, svc := testServer(t)
	_, _ = svc.Create(testutil.Rect("low", 0, 0, 10, 10))
	_, _ = svc.Create(testutil.Rect("high", 5, 5, 10, 10))

	r := callTool(t, srv, "annotations_at", map[string]any{"x": 7.0, "y": 7.0})
	if !strings.Contains(resultText(r), `"id": "high"`) {
		t.Errorf("at result = %q", resultText(r))
	}
	r = callTool(t, srv, "annotations_at", map[string]any{"x": 50.0, "y": 50.0, "buffer": 0.0})
	if !r.IsError {
		t.Error("expected error for empty point")
	}
}

func TestMergeSplitUndo(t *testing.T) {
	srv, svc := testServer(t)
	_, _ = svc.Create(testutil.Rect("a", 0, 0, 10, 10))
	_, _ = svc.Create(testutil.Rect("b", 5, 0, 10, 10))

	r := callTool(t, srv, "merge_annotations", map[string]any{"ids": []any{"a", "b"}})
	if r.IsError {
		t.Fatalf("merge failed: %s", resultText(r))
	}
	var merged models.Annotation
	_ = json.Unmarshal([]byte(resultText(r)), &merged)

	r = callTool(t, srv, "split_annotation", map[string]any{
		"id":   merged.ID,
		"line": []any{7.0, -1.0, 7.0, 11.0},
	})
	if r.IsError {
		t.Fatalf("split failed: %s", resultText(r))
	}
	var pieces []models.Annotation
	_ = json.Unmarshal([]byte(resultText(r)), &pieces)
	if len(pieces) != 2 {
		t.Errorf("pieces = %d, want 2", len(pieces))
	}

	if r := callTool(t, srv, "split_annotation", map[string]any{"id": pieces[0].ID, "line": []any{1.0, 2.0, 3.0}}); !r.IsError {
		t.Error("expected error for odd coordinate count")
	}

	callTool(t, srv, "undo", map[string]any{})
	callTool(t, srv, "undo", map[string]any{})
	if got := len(svc.List(annotationservice.ListFilter{})); got != 2 {
		t.Errorf("after two undos = %d annotations, want 2", got)
	}
	callTool(t, srv, "redo", map[string]any{})
	if got := len(svc.List(annotationservice.ListFilter{})); got != 1 {
		t.Errorf("after redo = %d annotations, want 1", got)
	}
}

func TestUndoEmpty(t *testing.T) {
	srv, _ := testServer(t)
	if text := resultText(callTool(t, srv, "undo", map[string]any{})); text != "nothing to undo" {
		t.Errorf("undo = %q", text)
	}
}

func TestDeleteAnnotation(t *testing.T) {
	srv, svc := testServer(t)
	_, _ = svc.Create(testutil.Rect("a", 0, 0, 1, 1))

	if text := resultText(callTool(t, srv, "delete_annotation", map[string]any{"id": "a"})); text != "deleted: a" {
		t.Errorf("delete = %q", text)
	}
	if r := callTool(t, srv, "delete_annotation", map[string]any{"id": "a"}); !r.IsError {
		t.Error("expected error deleting twice")
	}
}

func TestLayerTools(t *testing.T) {
	srv, svc := testServer(t)
	_, _ = svc.Create(testutil.Rect("a", 0, 0, 1, 1))

	r := callTool(t, srv, "set_layer_visibility", map[string]any{"id": "default", "visible": false})
	if r.IsError {
		t.Fatalf("set visibility failed: %s", resultText(r))
	}
	r = callTool(t, srv, "list_annotations", map[string]any{"visible": true})
	if strings.TrimSpace(resultText(r)) != "[]" {
		t.Errorf("visible list = %q, want []", resultText(r))
	}
	r = callTool(t, srv, "list_layers", map[string]any{})
	if !strings.Contains(resultText(r), `"id": "image"`) {
		t.Errorf("layers = %q", resultText(r))
	}
	if r := callTool(t, srv, "set_layer_visibility", map[string]any{"id": "ghost", "visible": true}); !r.IsError {
		t.Error("expected error for unknown layer")
	}
}

func TestFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != FormatURI || !strings.Contains(tc.Text, "multipolygon") {
		t.Errorf("resource = %+v", contents[0])
	}
}

func TestListenAnswersPing(t *testing.T) {
	srv, _ := testServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"ping"}` + "\n")
	var out bytes.Buffer

	if err := srv.Listen(context.Background(), in, &out, slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if !strings.Contains(out.String(), `"id":7`) {
		t.Errorf("output = %q", out.String())
	}
}
