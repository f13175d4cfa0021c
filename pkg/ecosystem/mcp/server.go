package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with flowlogic tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"flowlogic",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("flowlogic/validate",
			mcp.WithDescription("Validate a flowlogic workflow definition YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("flowlogic/eval",
			mcp.WithDescription("Evaluate an expression against a workflow's variables"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow YAML file")),
			mcp.WithString("expression", mcp.Required(), mcp.Description("Expression to evaluate")),
			mcp.WithObject("vars", mcp.Description("Variable mapping (answers by step id)")),
		),
		HandleEval,
	)

	s.AddTool(
		mcp.NewTool("flowlogic/visibility",
			mcp.WithDescription("Resolve step visibility for a variable mapping snapshot"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow YAML file")),
			mcp.WithObject("vars", mcp.Description("Variable mapping (answers by step id)")),
		),
		HandleVisibility,
	)

	s.AddTool(
		mcp.NewTool("flowlogic/validate_page",
			mcp.WithDescription("Validate one section's answers against its rules and constraints"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow YAML file")),
			mcp.WithString("section", mcp.Required(), mcp.Description("Section id to validate")),
			mcp.WithObject("answers", mcp.Description("Answers by step id")),
		),
		HandleValidatePage,
	)

	s.AddTool(
		mcp.NewTool("flowlogic/hooks",
			mcp.WithDescription("Execute a workflow's lifecycle hooks for a phase"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow YAML file")),
			mcp.WithString("phase", mcp.Required(), mcp.Description("Phase name, e.g. before_render")),
			mcp.WithObject("data", mcp.Description("Run data by key")),
		),
		HandleHooks,
	)

	s.AddTool(
		mcp.NewTool("flowlogic/schema",
			mcp.WithDescription("Export the workflow definition JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
