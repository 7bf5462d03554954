package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/odvcencio/scribe/mcptools"
)

// runMCP serves the document tool registry to an MCP client over stdio.
func runMCP(app *scribeApp) error {
	srv := server.NewMCPServer("scribe", "1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	reg := mcptools.NewRegistry(app)
	for _, tool := range reg.Tools() {
		tool := tool
		srv.AddTool(
			mcp.NewToolWithRawSchema(tool.Name, tool.Description, tool.InputSchema),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				params, err := json.Marshal(req.GetArguments())
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				result, err := tool.Handler(params)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				out, err := json.Marshal(result)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return mcp.NewToolResultText(string(out)), nil
			},
		)
	}

	for _, resource := range reg.Resources() {
		resource := resource
		srv.AddResource(
			mcp.NewResource(resource.URI, resource.Name,
				mcp.WithResourceDescription(resource.Description),
				mcp.WithMIMEType(resource.MimeType),
			),
			func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				text, err := resource.Handler(req.Params.URI)
				if err != nil {
					return nil, err
				}
				return []mcp.ResourceContents{
					mcp.TextResourceContents{
						URI:      req.Params.URI,
						MIMEType: resource.MimeType,
						Text:     text,
					},
				}, nil
			},
		)
	}

	if err := server.ServeStdio(srv); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
