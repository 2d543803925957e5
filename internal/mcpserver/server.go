// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Code Stash library to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/codestash/internal/apperr"
	"github.com/starford/codestash/internal/pipeline"
	"github.com/starford/codestash/internal/recordservice"
	"github.com/starford/codestash/internal/render"
	"github.com/starford/codestash/internal/symbology"
)

const (
	symbologiesURI = "codestash://symbologies"
	contractURI    = "codestash://payload-format"
)

// Server wraps the MCP server with Code Stash tools.
type Server struct {
	mcp *server.MCPServer
	svc *recordservice.Service
}

// New creates a new MCP server with all Code Stash tools registered.
func New(svc *recordservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Code Stash",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List stored codes, newest first."),
		mcp.WithBoolean("favorites", mcp.Description("Only return favorites")),
		mcp.WithString("symbology", mcp.Description("Only return codes of this symbology")),
		mcp.WithString("content", mcp.Description("Only return payloads of this class"),
			mcp.Enum("plain_text", "web_link", "wifi")),
		mcp.WithString("query", mcp.Description("Search names and payloads")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 50)")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Read a single stored code with its classification and image state."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
	), s.getRecord)

	s.mcp.AddTool(mcp.NewTool("create_record",
		mcp.WithDescription("Store a new code. Read the payload contract first via the "+
			"codestash://payload-format resource."),
		mcp.WithString("payload", mcp.Required(), mcp.Description("Exact code contents")),
		mcp.WithString("name", mcp.Description("Display name; empty means Unnamed")),
		mcp.WithString("symbology", mcp.Description("Symbology identifier; defaults to the library default")),
		mcp.WithBoolean("favorite", mcp.Description("Mark as favorite")),
	), s.createRecord)

	s.mcp.AddTool(mcp.NewTool("get_record_image",
		mcp.WithDescription("Return the rendered PNG of a stored code, or its pending/unsupported state."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
	), s.getRecordImage)

	s.mcp.AddTool(mcp.NewTool("classify_payload",
		mcp.WithDescription("Report whether a payload is plain text, a web link or a Wi-Fi configuration."),
		mcp.WithString("payload", mcp.Required(), mcp.Description("Payload to classify")),
	), s.classifyPayload)

	s.mcp.AddTool(mcp.NewTool("list_symbologies",
		mcp.WithDescription("List every known symbology with its display name and render capability."),
	), s.listSymbologies)

	s.mcp.AddTool(mcp.NewTool("render_code",
		mcp.WithDescription("Render a payload to PNG without storing it."),
		mcp.WithString("payload", mcp.Required(), mcp.Description("Payload to encode")),
		mcp.WithString("symbology", mcp.Description("Symbology identifier; defaults to the library default")),
	), s.renderCode)

	s.mcp.AddResource(
		mcp.NewResource(symbologiesURI, "Symbology Catalog",
			mcp.WithResourceDescription("Every symbology Code Stash knows and how it is rendered."),
			mcp.WithMIMEType("application/json"),
		),
		s.readSymbologiesResource,
	)
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Payload Format Contract",
			mcp.WithResourceDescription("How payloads and symbologies are interpreted."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type listArgs struct {
	Favorites bool   `json:"favorites"`
	Symbology string `json:"symbology"`
	Content   string `json:"content"`
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
}

type createArgs struct {
	Name      string `json:"name"`
	Payload   string `json:"payload"`
	Symbology string `json:"symbology"`
	Favorite  bool   `json:"favorite"`
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("record not found")
	case errors.Is(err, apperr.ErrUnsupportedSymbology):
		return mcp.NewToolResultError("cannot display this code: unsupported symbology")
	case errors.Is(err, apperr.ErrEncoding):
		return mcp.NewToolResultError("cannot display this code: payload cannot be encoded")
	case errors.Is(err, apperr.ErrTransport):
		return mcp.NewToolResultError("image service unavailable")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[listArgs](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, total, err := s.svc.List(ctx, recordservice.ListInput{
		Favorites: args.Favorites,
		Symbology: args.Symbology,
		Content:   args.Content,
		Search:    args.Query,
		Limit:     args.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"records": items, "total": total}), nil
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Get(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(rec), nil
}

func (s *Server) createRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := req.RequireString("payload"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args, err := decode[createArgs](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Create(ctx, recordservice.CreateInput{
		Name:      args.Name,
		Payload:   args.Payload,
		Symbology: args.Symbology,
		Favorite:  args.Favorite,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(rec), nil
}

func (s *Server) getRecordImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	img, err := s.svc.Image(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	switch img.State {
	case pipeline.Cached:
		return imageResult(fmt.Sprintf("record %s revision %d", id, img.Revision), img.PNG), nil
	case pipeline.Pending:
		return mcp.NewToolResultText("pending: the image is still being fetched, try again shortly"), nil
	default:
		return mcp.NewToolResultError("cannot display this code"), nil
	}
}

func (s *Server) classifyPayload(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := req.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Classify(data)), nil
}

func (s *Server) listSymbologies(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(symbology.Catalog()), nil
}

func (s *Server) renderCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := req.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sym := req.GetString("symbology", "")
	png, err := s.svc.Render(ctx, data, sym)
	if err != nil {
		return errorResult(err), nil
	}
	return imageResult("rendered "+data, png), nil
}

func imageResult(text string, png []byte) *mcp.CallToolResult {
	return mcp.NewToolResultImage(text, base64.StdEncoding.EncodeToString(png), render.ContentType)
}

func (s *Server) readSymbologiesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(symbology.Catalog())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      symbologiesURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     PayloadContract,
		},
	}, nil
}
