// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes annotation tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/annota/internal/annotationservice"
	"github.com/starford/annota/internal/models"
)

// FormatURI names the annotation format resource.
const FormatURI = "annota://annotation-format"

// Server wraps the MCP server with annotation tools.
type Server struct {
	mcp *server.MCPServer
	svc *annotationservice.Service
}

// New creates a new MCP server with all annotation tools registered.
func New(svc *annotationservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"annota",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_annotations",
		mcp.WithDescription("List annotations in insertion order, optionally filtered."),
		mcp.WithString("layer", mcp.Description("Only annotations resolved to this layer id")),
		mcp.WithString("kind", mcp.Description("Only this shape kind (rectangle, polygon, ...)")),
		mcp.WithBoolean("visible", mcp.Description("Only annotations on visible layers")),
	), s.listAnnotations)

	s.mcp.AddTool(mcp.NewTool("get_annotation",
		mcp.WithDescription("Read one annotation as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Annotation id")),
	), s.getAnnotation)

	s.mcp.AddTool(mcp.NewTool("annotations_at",
		mcp.WithDescription("Return the topmost annotation under an image-space point."),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("X in image pixels")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Y in image pixels")),
		mcp.WithNumber("buffer", mcp.Min(0), mcp.Description("Hit tolerance in pixels; server default when omitted")),
		mcp.WithBoolean("visible", mcp.Description("Ignore annotations on hidden layers")),
	), s.annotationsAt)

	s.mcp.AddTool(mcp.NewTool("create_annotation",
		mcp.WithDescription("Create an annotation. The JSON MUST follow the annotation format; "+
			"read it first via the "+FormatURI+" resource. A missing id is generated."),
		mcp.WithString("annotation", mcp.Required(), mcp.Description("Annotation JSON object")),
	), s.createAnnotation)

	s.mcp.AddTool(mcp.NewTool("delete_annotation",
		mcp.WithDescription("Delete an annotation. The deletion can be undone."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Annotation id")),
	), s.deleteAnnotation)

	s.mcp.AddTool(mcp.NewTool("merge_annotations",
		mcp.WithDescription("Union two or more area annotations into one polygon. "+
			"Disjoint inputs are joined by their convex hull."),
		mcp.WithArray("ids", mcp.Required(), mcp.MinItems(2), mcp.WithStringItems(), mcp.Description("Annotation ids to merge")),
	), s.mergeAnnotations)

	s.mcp.AddTool(mcp.NewTool("split_annotation",
		mcp.WithDescription("Cut an area annotation along a polyline that crosses it completely."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Annotation id")),
		mcp.WithArray("line", mcp.Required(), mcp.MinItems(4), mcp.WithNumberItems(),
			mcp.Description("Flat list of coordinates x1, y1, x2, y2, ...")),
	), s.splitAnnotation)

	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Revert the latest change."),
	), s.undo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Re-apply the latest undone change."),
	), s.redo)

	s.mcp.AddTool(mcp.NewTool("list_layers",
		mcp.WithDescription("List layers in stacking order."),
	), s.listLayers)

	s.mcp.AddTool(mcp.NewTool("set_layer_visibility",
		mcp.WithDescription("Show or hide a layer."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Layer id")),
		mcp.WithBoolean("visible", mcp.Required(), mcp.Description("New visibility")),
	), s.setLayerVisibility)

	// Resource: annotation format contract.
	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Annotation Format",
			mcp.WithResourceDescription("JSON format of annotations and shapes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// Listen serves MCP over in and out until ctx is cancelled or in is
// closed. Transport errors go to logger, never to out.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer, logger *slog.Logger) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listAnnotations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.svc.List(annotationservice.ListFilter{
		Layer:       req.GetString("layer", ""),
		Kind:        models.Kind(req.GetString("kind", "")),
		VisibleOnly: req.GetBool("visible", false),
	})
	return jsonResult(items)
}

func (s *Server) getAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.svc.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a)
}

func (s *Server) annotationsAt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	x, err := req.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var buffer *float64
	if b, bErr := req.RequireFloat("buffer"); bErr == nil {
		buffer = &b
	}
	a, err := s.svc.At(x, y, buffer, req.GetBool("visible", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a)
}

func (s *Server) createAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("annotation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var a models.Annotation
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid annotation JSON: %v", err)), nil
	}
	created, err := s.svc.Create(a)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", created.ID)), nil
}

func (s *Server) deleteAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) mergeAnnotations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := req.RequireStringSlice("ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	merged, err := s.svc.Merge(ids)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(merged)
}

func (s *Server) splitAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	flat, err := req.RequireFloatSlice("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(flat)%2 != 0 || len(flat) < 4 {
		return mcp.NewToolResultError("line needs an even number of coordinates, at least two points"), nil
	}
	line := make([]models.Point, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		line = append(line, models.Pt(flat[i], flat[i+1]))
	}
	pieces, err := s.svc.Split(id, line)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(pieces)
}

func (s *Server) undo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, ok, err := s.svc.Undo()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultText("nothing to undo"), nil
	}
	return jsonResult(st)
}

func (s *Server) redo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, ok, err := s.svc.Redo()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultText("nothing to redo"), nil
	}
	return jsonResult(st)
}

func (s *Server) listLayers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Layers())
}

func (s *Server) setLayerVisibility(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	visible, err := req.RequireBool("visible")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	l, err := s.svc.SetLayerVisibility(id, visible)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(l)
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     AnnotationFormat,
		},
	}, nil
}
